package source

import (
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStashAndOpenRoundTrip(t *testing.T) {
	store := NewFileStore(afero.NewMemMapFs(), "/staging")

	p, err := store.Stash([]byte("stashed bytes"), "lecture.mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "/staging/"))
	assert.True(t, strings.HasSuffix(p, ".mp4"), "staged name should keep the extension")

	rc, err := store.Open(p)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("stashed bytes"), data)
}

func TestStashedNamesNeverCollide(t *testing.T) {
	store := NewFileStore(afero.NewMemMapFs(), "/staging")

	p1, err := store.Stash([]byte("one"), "same.bin")
	require.NoError(t, err)
	p2, err := store.Stash([]byte("two"), "same.bin")
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
}

func TestOpenMissingSource(t *testing.T) {
	store := NewFileStore(afero.NewMemMapFs(), "/staging")

	_, err := store.Open("/nope/gone.bin")
	assert.ErrorIs(t, err, ErrSourceMissing)

	_, err = store.Open("")
	assert.ErrorIs(t, err, ErrSourceMissing)
}
