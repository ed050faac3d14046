package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "annotator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_DocumentRoundTrip(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	doc := &Document{
		Name:    "annotations.json",
		Src:     "/videos/a.mp4",
		Version: "v2.0.0",
		Data:    []byte(`{"version":"v2.0.0"}`),
	}
	require.NoError(t, store.SaveDocument(ctx, doc))
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := store.LoadDocument(ctx, "annotations.json")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Src, got.Src)
	assert.Equal(t, doc.Version, got.Version)
	assert.Equal(t, doc.Data, got.Data)
	assert.WithinDuration(t, doc.UpdatedAt, got.UpdatedAt, time.Second)
}

func TestSQLiteStore_SaveReplacesByName(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	first := &Document{Name: "run", Data: []byte(`{"a":1}`)}
	require.NoError(t, store.SaveDocument(ctx, first))

	second := &Document{Name: "run", Data: []byte(`{"a":2}`), Version: "v2"}
	require.NoError(t, store.SaveDocument(ctx, second))
	assert.Equal(t, first.ID, second.ID, "replacing keeps the original id")

	got, err := store.LoadDocument(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got.Data))
	assert.Equal(t, "v2", got.Version)

	list, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, len(`{"a":2}`), list[0].Size)
}

func TestSQLiteStore_ListAndDelete(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, &Document{Name: "a", Data: []byte("{}")}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.SaveDocument(ctx, &Document{Name: "b", Data: []byte("{}")}))

	list, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name)
	assert.Equal(t, "a", list[1].Name)

	require.NoError(t, store.DeleteDocument(ctx, "a"))
	assert.ErrorIs(t, store.DeleteDocument(ctx, "a"), ErrNotFound)

	_, err = store.LoadDocument(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewSQLiteStore("  ")
	assert.Error(t, err)

	store := newStore(t)
	assert.Error(t, store.SaveDocument(context.Background(), &Document{Name: " "}))
	assert.Error(t, store.SaveDocument(context.Background(), nil))
}

func TestSQLiteStore_ReopenKeepsMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "annotator.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveDocument(context.Background(), &Document{Name: "keep", Data: []byte("{}")}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.LoadDocument(context.Background(), "keep")
	require.NoError(t, err)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("012_more.sql"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}
