package assets

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faultbox/charview/pkg/grf"
)

func mountArchive(t *testing.T, m *Manager, files ...grf.File) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, grf.Write(&buf, files))
	a, err := grf.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	m.Mount(a)
}

func TestFetchFromArchives(t *testing.T) {
	m := NewManager(Options{}, NewCache(), zap.NewNop())
	defer m.Close()

	mountArchive(t, m,
		grf.File{Name: "data/model/a.rsm", Data: []byte("old")},
		grf.File{Name: "data/model/b.rsm", Data: []byte("only-first")},
	)
	mountArchive(t, m, grf.File{Name: "data/model/a.rsm", Data: []byte("new")})

	ctx := context.Background()
	data, err := m.Fetch(ctx, "grf://data\\model\\A.rsm")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data), "last mounted archive wins")

	data, err = m.Fetch(ctx, "grf://data/model/b.rsm")
	require.NoError(t, err)
	assert.Equal(t, "only-first", string(data))

	_, err = m.Fetch(ctx, "grf://data/model/c.rsm")
	assert.ErrorIs(t, err, ErrNotFound)

	// Bare game paths fall back to the archives.
	data, err = m.Fetch(ctx, "data/model/b.rsm")
	require.NoError(t, err)
	assert.Equal(t, "only-first", string(data))
}

func TestFetchLocalIsNotCached(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache()
	m := NewManager(Options{RootDir: dir}, cache, zap.NewNop())
	path := filepath.Join(dir, "hero.glb")

	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	data, err := m.Fetch(context.Background(), "hero.glb")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	data, err = m.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	assert.Zero(t, cache.Len())

	_, err = m.Fetch(context.Background(), "missing.glb")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchHTTP(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/hero.glb":
			w.Write([]byte("glTF-bytes"))
		case "/big":
			w.Write(make([]byte, 2048))
		case "/broken":
			http.Error(w, "nope", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cache := NewCache()
	m := NewManager(Options{MaxSize: 1024, HTTPTimeout: time.Second}, cache, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		data, err := m.Fetch(ctx, srv.URL+"/hero.glb")
		require.NoError(t, err)
		assert.Equal(t, "glTF-bytes", string(data))
	}
	assert.Equal(t, int32(1), requests.Load(), "second fetch served from cache")
	hits, misses := cache.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	_, err := m.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Fetch(ctx, srv.URL+"/broken")
	assert.ErrorContains(t, err, "500")

	_, err = m.Fetch(ctx, srv.URL+"/big")
	assert.ErrorContains(t, err, "exceeds")
}

func TestFetchHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	m := NewManager(Options{}, nil, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Fetch(ctx, srv.URL+"/slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done, stop := context.WithCancel(context.Background())
	stop()
	_, err = m.Fetch(done, "grf://anything")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache(t *testing.T) {
	c := NewCache()
	c.Set("a", []byte("1"))

	data, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", string(data))
	_, ok = c.Get("b")
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	c.Delete("a")
	assert.Zero(t, c.Len())

	c.Set("x", nil)
	c.Clear()
	assert.Zero(t, c.Len())
	hits, misses = c.Stats()
	assert.Zero(t, hits+misses)
}

func TestBoundedCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewBoundedCache(10)
	c.Set("a", []byte("aaaa"))
	c.Set("b", []byte("bbbb"))
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", []byte("cccc"))
	assert.Equal(t, 8, c.Size())
	assert.Equal(t, 1, c.Evictions())

	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)

	c.Set("huge", make([]byte, 11))
	_, ok = c.Get("huge")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Set("a", []byte("a"))
	assert.Equal(t, 5, c.Size())
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal("models/hero.glb"))
	assert.True(t, IsLocal("/abs/hero.rsm"))
	assert.True(t, IsLocal("file:///abs/hero.rsm"))
	assert.False(t, IsLocal("grf://data/model/tree.rsm"))
	assert.False(t, IsLocal("http://host/hero.glb"))
	assert.False(t, IsLocal("https://host/hero.glb"))
}
