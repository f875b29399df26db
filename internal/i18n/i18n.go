// Package i18n resolves the user-facing notification texts from YAML catalogues.
package i18n

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLang is used when no language is configured or requested.
const DefaultLang = "pt-br"

//go:embed locales/*.yaml
var embedded embed.FS

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	Format(key string, vars map[string]string) string
	Lang() string
}

type catalog map[string]string

// Manager stores all available translations. Requested languages are
// matched against the loaded ones with BCP 47 rules, so "pt" or "pt-PT"
// pick the Brazilian catalogue and unknown languages get the default.
type Manager struct {
	catalogs    map[string]catalog
	defaultLang string
	names       []string
	matcher     language.Matcher
}

// Load loads the catalogues compiled into the binary.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(embedded, "locales", defaultLang)
}

// LoadFS loads translations from the YAML files found in dir of fsys. Each
// file holds one or more top-level language keys with nested sections.
func LoadFS(fsys fs.FS, dir, defaultLang string) (*Manager, error) {
	catalogs, err := readCatalogs(fsys, dir)
	if err != nil {
		return nil, err
	}

	defaultLang = normalize(defaultLang)
	if defaultLang == "" {
		defaultLang = DefaultLang
	}
	if _, ok := catalogs[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	// The matcher falls back to its first tag, so the default goes first.
	names := []string{defaultLang}
	for name := range catalogs {
		if name != defaultLang {
			names = append(names, name)
		}
	}
	sort.Strings(names[1:])

	tags := make([]language.Tag, len(names))
	for i, name := range names {
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("i18n: language %q: %w", name, err)
		}
		tags[i] = tag
	}

	return &Manager{
		catalogs:    catalogs,
		defaultLang: defaultLang,
		names:       names,
		matcher:     language.NewMatcher(tags),
	}, nil
}

// Translator returns a translator for the requested language. Accept-Language
// style values ("pt-BR,pt;q=0.9") are honoured.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	name := m.resolve(lang)
	return translator{
		lang:     name,
		primary:  m.catalogs[name],
		fallback: m.catalogs[m.defaultLang],
	}
}

// Languages returns all loaded languages.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.names...)
}

func (m *Manager) resolve(lang string) string {
	lang = strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if lang == "" {
		return m.defaultLang
	}

	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return m.defaultLang
	}

	_, index, confidence := m.matcher.Match(tags...)
	if confidence == language.No {
		return m.defaultLang
	}
	return m.names[index]
}

func normalize(lang string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), "_", "-")
}

type translator struct {
	lang     string
	primary  catalog
	fallback catalog
}

func (t translator) Lang() string {
	return t.lang
}

// T returns the text for key, falling back to the default language and then
// to the key itself.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if value, ok := t.primary[key]; ok {
		return value
	}
	if value, ok := t.fallback[key]; ok {
		return value
	}
	return key
}

// Format translates key and substitutes {{.Name}} placeholders from vars.
func (t translator) Format(key string, vars map[string]string) string {
	text := t.T(key)
	if len(vars) == 0 || !strings.Contains(text, "{{.") {
		return text
	}

	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{{."+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func readCatalogs(fsys fs.FS, dir string) (map[string]catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", dir, err)
	}

	catalogs := make(map[string]catalog)
	files := 0

	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files++

		name := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("i18n: read file %s: %w", name, err)
		}

		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("i18n: parse file %s: %w", name, err)
		}
		if len(doc.Content) == 0 {
			continue
		}

		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("i18n: parse file %s: top level must map languages to sections", name)
		}

		for i := 0; i+1 < len(root.Content); i += 2 {
			lang := normalize(root.Content[i].Value)
			if lang == "" {
				continue
			}
			if catalogs[lang] == nil {
				catalogs[lang] = make(catalog)
			}
			flatten("", root.Content[i+1], catalogs[lang])
		}
	}

	if files == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}

	for lang, entries := range catalogs {
		if len(entries) == 0 {
			delete(catalogs, lang)
		}
	}
	return catalogs, nil
}

// flatten stores every scalar under node with its dotted path.
func flatten(prefix string, node *yaml.Node, out catalog) {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix != "" {
			out[prefix] = node.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			flatten(key, node.Content[i+1], out)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			flatten(prefix, node.Alias, out)
		}
	}
}

type langKey struct{}

// WithLang stores the requested language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// LangFromContext returns the language stored by WithLang, or "".
func LangFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	lang, _ := ctx.Value(langKey{}).(string)
	return lang
}
