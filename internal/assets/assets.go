// Package assets resolves model and texture sources to bytes.
//
// A source is one of:
//
//	grf://data/model/prontera/tree.rsm   a path inside the mounted GRF archives
//	https://cdn.example/models/hero.glb  an HTTP(S) URL
//	models/hero.glb                      a local file, relative to the root dir
//
// Local paths that do not exist on disk fall back to the archives, so
// bare game paths such as data/model/x.rsm work too.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/charview/pkg/grf"
)

// GRFScheme prefixes sources read from archives.
const GRFScheme = "grf://"

// ErrNotFound is returned when no location holds the source.
var ErrNotFound = errors.New("asset not found")

// Options configures a Manager.
type Options struct {
	// RootDir resolves relative local paths. Empty means the working directory.
	RootDir string
	// HTTPTimeout bounds a single HTTP fetch. Zero means no limit beyond the context.
	HTTPTimeout time.Duration
	// MaxSize rejects HTTP bodies larger than this many bytes. Zero means 64 MiB.
	MaxSize int64
}

const defaultMaxSize = 64 << 20

// Manager fetches sources from disk, GRF archives and HTTP.
// Archive and HTTP results are cached; local files are always re-read so
// edits show up on reload.
type Manager struct {
	opts   Options
	cache  *Cache
	client *http.Client
	log    *zap.Logger

	mu       sync.RWMutex
	archives []*grf.Archive
}

// NewManager creates a manager. cache may be nil to disable caching.
func NewManager(opts Options, cache *Cache, log *zap.Logger) *Manager {
	if opts.MaxSize <= 0 {
		opts.MaxSize = defaultMaxSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		opts:   opts,
		cache:  cache,
		client: &http.Client{Timeout: opts.HTTPTimeout},
		log:    log,
	}
}

// AddArchive mounts a GRF archive.
// Archives are searched in reverse order (last added = highest priority).
func (m *Manager) AddArchive(path string) error {
	archive, err := grf.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}
	m.Mount(archive)
	m.log.Info("mounted archive", zap.String("path", path), zap.Int("files", len(archive.List())))
	return nil
}

// Mount adds an already opened archive. The manager takes ownership.
func (m *Manager) Mount(archive *grf.Archive) {
	m.mu.Lock()
	m.archives = append(m.archives, archive)
	m.mu.Unlock()
}

// Fetch returns the bytes behind source.
func (m *Manager) Fetch(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(source, GRFScheme):
		return m.cached(source, func() ([]byte, error) {
			return m.readArchive(strings.TrimPrefix(source, GRFScheme))
		})
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return m.cached(source, func() ([]byte, error) {
			return m.fetchHTTP(ctx, source)
		})
	default:
		return m.readLocal(strings.TrimPrefix(source, "file://"))
	}
}

func (m *Manager) cached(key string, load func() ([]byte, error)) ([]byte, error) {
	if m.cache != nil {
		if data, ok := m.cache.Get(key); ok {
			return data, nil
		}
	}
	data, err := load()
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		m.cache.Set(key, data)
	}
	return data, nil
}

func (m *Manager) readArchive(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.archives) - 1; i >= 0; i-- {
		data, err := m.archives[i].Read(path)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, grf.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
}

// IsLocal reports whether source names a file on disk.
func IsLocal(source string) bool {
	return !strings.HasPrefix(source, GRFScheme) &&
		!strings.HasPrefix(source, "http://") &&
		!strings.HasPrefix(source, "https://")
}

// LocalPath resolves a local source against the root directory.
func (m *Manager) LocalPath(source string) string {
	source = strings.TrimPrefix(source, "file://")
	if filepath.IsAbs(source) || m.opts.RootDir == "" {
		return filepath.Clean(source)
	}
	return filepath.Join(m.opts.RootDir, source)
}

func (m *Manager) readLocal(source string) ([]byte, error) {
	data, err := os.ReadFile(m.LocalPath(source))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	m.mu.RLock()
	mounted := len(m.archives) > 0
	m.mu.RUnlock()
	if mounted {
		return m.cached(GRFScheme+source, func() ([]byte, error) {
			return m.readArchive(source)
		})
	}
	return nil, fmt.Errorf("%s: %w", source, ErrNotFound)
}

func (m *Manager) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.opts.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(data)) > m.opts.MaxSize {
		return nil, fmt.Errorf("%s: body exceeds %d bytes", url, m.opts.MaxSize)
	}
	m.log.Debug("fetched", zap.String("url", url), zap.Int("bytes", len(data)))
	return data, nil
}

// Close unmounts every archive and clears the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, archive := range m.archives {
		archive.Close()
	}
	m.archives = nil
	if m.cache != nil {
		m.cache.Clear()
	}
}
