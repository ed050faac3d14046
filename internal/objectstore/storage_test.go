package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageRequiresBucket(t *testing.T) {
	_, err := NewStorage(StorageConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestNewStorageRejectsEndpointWithScheme(t *testing.T) {
	_, err := NewStorage(StorageConfig{Endpoint: "http://localhost:9000", Bucket: "docs"})
	assert.Error(t, err)
}

func TestObjectKeys(t *testing.T) {
	s, err := NewStorage(StorageConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "annotations",
		Prefix:    "/team-a/",
	})
	require.NoError(t, err)

	assert.Equal(t, "team-a/documents/run1.json", s.DocumentKey("run1.json"))

	s, err = NewStorage(StorageConfig{Endpoint: "localhost:9000", Bucket: "annotations"})
	require.NoError(t, err)
	assert.Equal(t, "documents/run1.json", s.DocumentKey("run1.json"))
}
