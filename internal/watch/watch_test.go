package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReportsTrackedFiles(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "hero.glb")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(model, []byte("v1"), 0o644))

	w, err := New(10 * time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(model))

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(model, []byte("v2"), 0o644))

	abs, err := filepath.Abs(model)
	require.NoError(t, err)
	select {
	case got := <-w.Events:
		assert.Equal(t, abs, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for watched file")
	}
}

func TestUnwatch(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "hero.glb")
	require.NoError(t, os.WriteFile(model, []byte("v1"), 0o644))

	w, err := New(0)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(model))
	assert.True(t, w.watched(model))

	w.Unwatch()
	assert.False(t, w.watched(model))
}

func TestCloseClosesChannels(t *testing.T) {
	w, err := New(0)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, ok := <-w.Events
	assert.False(t, ok)
	_, ok = <-w.Errors
	assert.False(t, ok)
}

func TestWatchMissingDirectory(t *testing.T) {
	w, err := New(0)
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "nope", "x.rsm")))
}
