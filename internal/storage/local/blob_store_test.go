package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesRoot(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "blobs")
	_, err := New(Config{RootDir: root})
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRejectsEmptyRoot(t *testing.T) {
	t.Parallel()

	_, err := New(Config{RootDir: "  "})
	assert.Error(t, err)
}

func TestNewRejectsFileRoot(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o640))

	_, err := New(Config{RootDir: file})
	assert.Error(t, err)
}

func TestPutObjectWritesNestedPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := New(Config{RootDir: root})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "league/EPL/2016-2017", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"), "uri %q", uri)

	got, err := os.ReadFile(filepath.Join(root, "league", "EPL", "2016-2017"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestPutObjectOverwriteIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := New(Config{RootDir: root})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "match/1", "application/json", strings.NewReader(`{"v":1}`))
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "match/1", "application/json", strings.NewReader(`{"v":1}`))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, "match", "1"))
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))
}

func TestPutObjectRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	store, err := New(Config{RootDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "   ", "application/json", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestPutObjectRejectsEscapingPath(t *testing.T) {
	t.Parallel()

	store, err := New(Config{RootDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../outside", "application/json", strings.NewReader("x"))
	assert.Error(t, err)
}
