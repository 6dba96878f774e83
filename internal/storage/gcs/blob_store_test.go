package gcs

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
)

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "crawl-archive"})
	assert.Error(t, err)
}

func TestNewRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := New(&storage.Client{}, Config{})
	assert.Error(t, err)
}
