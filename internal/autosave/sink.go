package autosave

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MimeLyc/video-annotator/internal/persistence"
)

// Document is one rendered session document ready to be stored.
type Document struct {
	Name    string
	Src     string
	Version string
	Data    []byte
}

// Sink stores session documents somewhere.
type Sink interface {
	Name() string
	Write(ctx context.Context, doc Document) error
}

type documentStore interface {
	SaveDocument(ctx context.Context, doc *persistence.Document) error
}

// SQLiteSink keeps documents in the local database.
type SQLiteSink struct {
	store documentStore
}

func NewSQLiteSink(store documentStore) *SQLiteSink {
	return &SQLiteSink{store: store}
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Write(ctx context.Context, doc Document) error {
	return s.store.SaveDocument(ctx, &persistence.Document{
		Name:    doc.Name,
		Src:     doc.Src,
		Version: doc.Version,
		Data:    doc.Data,
	})
}

// DirSink writes documents as files into a directory.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Name() string { return "dir" }

func (s *DirSink) Write(_ context.Context, doc Document) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, doc.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, doc.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

type objectStore interface {
	PutDocument(ctx context.Context, name string, data []byte) error
}

// ObjectSink uploads documents to an S3-compatible bucket.
type ObjectSink struct {
	storage objectStore
}

func NewObjectSink(storage objectStore) *ObjectSink {
	return &ObjectSink{storage: storage}
}

func (s *ObjectSink) Name() string { return "minio" }

func (s *ObjectSink) Write(ctx context.Context, doc Document) error {
	return s.storage.PutDocument(ctx, doc.Name, doc.Data)
}
