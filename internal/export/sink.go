package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/Proton-105/inovabank/internal/domain"
)

// Sink stores a produced file and returns where it was written.
type Sink interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// DirSink writes files into a local directory.
type DirSink struct {
	dir string
}

// NewDirSink returns a sink writing into dir, created on first use.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Put implements Sink.
func (s *DirSink) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// GCSSink uploads files to a Google Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink connects to Cloud Storage. Application default credentials are
// used unless credentialsJSON is set.
func NewGCSSink(ctx context.Context, bucket, prefix, credentialsJSON string) (*GCSSink, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSSink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Put implements Sink.
func (s *GCSSink) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	object := name
	if s.prefix != "" {
		object = s.prefix + "/" + name
	}

	wc := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", object, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

// Snapshot writes the CSV and XLSX exports of clients to sink and returns their locations.
func Snapshot(ctx context.Context, sink Sink, clients []domain.Client, now time.Time) ([]string, error) {
	var csvBuf, xlsxBuf bytes.Buffer

	if err := WriteCSV(&csvBuf, clients); err != nil {
		return nil, err
	}
	if err := WriteXLSX(&xlsxBuf, clients); err != nil {
		return nil, err
	}

	files := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{Filename(now, "csv"), ContentTypeCSV, csvBuf.Bytes()},
		{Filename(now, "xlsx"), ContentTypeXLSX, xlsxBuf.Bytes()},
	}

	locations := make([]string, 0, len(files))
	for _, f := range files {
		loc, err := sink.Put(ctx, f.name, f.contentType, f.data)
		if err != nil {
			return locations, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
