package i18n

import (
	"context"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalogues(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)

	langs := m.Languages()
	sort.Strings(langs)
	assert.Equal(t, []string{"en", "pt-br"}, langs)

	assert.Equal(t, "Erro", m.Translator("").T("common.error_title"))
	assert.Equal(t, "Error", m.Translator("en").T("common.error_title"))
}

func TestTranslator_Resolve(t *testing.T) {
	m, err := Load(DefaultLang)
	require.NoError(t, err)

	cases := []struct {
		accept string
		want   string
	}{
		{"en-US,en;q=0.9", "en"},
		{"pt-BR,pt;q=0.9", "pt-br"},
		{"pt", "pt-br"},
		{"pt_BR", "pt-br"},
		{"fr-FR, en;q=0.5", "en"},
		{"de", "pt-br"},
		{"", "pt-br"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.accept, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Translator(tc.accept).Lang())
		})
	}
}

func TestTranslator_FallbackAndFormat(t *testing.T) {
	fsys := fstest.MapFS{
		"loc/pt-br.yaml": {Data: []byte("pt-br:\n  greet: \"Olá, {{.Name}}\"\n  only_pt: \"só pt\"\n")},
		"loc/en.yml":     {Data: []byte("en:\n  greet: \"Hi, {{.Name}}\"\n")},
		"loc/notes.txt":  {Data: []byte("ignored")},
	}

	m, err := LoadFS(fsys, "loc", "pt-BR")
	require.NoError(t, err)

	en := m.Translator("en")
	assert.Equal(t, "Hi, Ana", en.Format("greet", map[string]string{"Name": "Ana"}))
	assert.Equal(t, "só pt", en.T("only_pt"))
	assert.Equal(t, "missing.key", en.T("missing.key"))
	assert.Equal(t, "", en.T("  "))
}

func TestLoadFS_Errors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"loc/a.txt": {Data: []byte("x")}}, "loc", "en")
	assert.ErrorContains(t, err, "no yaml files")

	_, err = LoadFS(fstest.MapFS{"loc/en.yaml": {Data: []byte("en:\n  a: b\n")}}, "loc", "pt-br")
	assert.ErrorContains(t, err, "default language")

	_, err = LoadFS(fstest.MapFS{"loc/en.yaml": {Data: []byte("en: [unclosed")}}, "loc", "en")
	assert.ErrorContains(t, err, "parse file")
}

func TestLangContext(t *testing.T) {
	ctx := WithLang(context.Background(), "en")
	assert.Equal(t, "en", LangFromContext(ctx))
	assert.Equal(t, "", LangFromContext(context.Background()))

	var nilManager *Manager
	assert.Equal(t, "key", nilManager.Translator("en").T("key"))
}
