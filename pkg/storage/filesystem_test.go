package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStreamRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.SaveStream("notes", "unit1.pdf", bytes.NewReader([]byte("%PDF-1.4")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "notes/"))
	assert.True(t, strings.HasSuffix(rel, "_unit1.pdf"))

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestSaveStreamSanitizesFilename(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.SaveStream("circulars", "../../etc/pass wd.txt", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.NotContains(t, rel, "..")
	assert.NotContains(t, rel, " ")

	_, err = store.Open(rel)
	assert.NoError(t, err)
}

func TestRemoveMissingFileIsNotAnError(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Remove("notes/never_existed.pdf"))
}

func TestRemoveDeletesStoredFile(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.SaveStream("notes", "unit1.pdf", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, store.Remove(rel))

	_, err = store.Open(rel)
	assert.Error(t, err)
}
