// Package cache stores rendered timeline audio on disk, addressed by a
// fingerprint of the source path, output format and clip list.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"lukechampine.com/blake3"

	"github.com/maauso/cutline-api/internal/timeline"
)

// Static errors for cache operations.
var (
	// ErrInvalidFormat is returned for an empty or non-alphanumeric format.
	ErrInvalidFormat = errors.New("cache: invalid output format")
	// ErrEmptyTimeline is returned when asked to render no clips.
	ErrEmptyTimeline = errors.New("cache: clip list is empty")
)

var formatRe = regexp.MustCompile(`^[a-z0-9]+$`)

// Renderer produces the concatenated audio of clips from path into outPath.
// media.FFmpegBackend satisfies it.
type Renderer interface {
	RenderTimeline(ctx context.Context, path string, clips []timeline.Clip, outPath string) error
}

// Cache is a content-addressed render cache. A given fingerprint is rendered
// at most once per process; renders across processes race safely because
// results are written to a temp file and renamed into place.
type Cache struct {
	dir      string
	renderer Renderer
	index    *index
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxBytes bounds the total size of cached files. Least recently used
// entries are evicted after each render until the total fits. Zero disables
// eviction.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithClock sets the time source used for access times.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New opens (or creates) a cache in dir.
func New(dir string, renderer Renderer, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	idx, err := openIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, err
	}

	c := &Cache{
		dir:      dir,
		renderer: renderer,
		index:    idx,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		locks:    make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close releases the index database.
func (c *Cache) Close() error {
	return c.index.close()
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Fingerprint returns the blake3-256 hex digest identifying a render of clips
// from sourcePath in format. Clip order matters.
func Fingerprint(sourcePath, format string, clips []timeline.Clip) string {
	h := blake3.New(32, nil)

	var buf [8]byte
	writeString := func(s string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		_, _ = h.Write(buf[:])
		_, _ = io.WriteString(h, s)
	}
	writeFloat := func(f float64) {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = h.Write(buf[:])
	}

	writeString(sourcePath)
	writeString(format)
	binary.BigEndian.PutUint64(buf[:], uint64(len(clips)))
	_, _ = h.Write(buf[:])
	for _, c := range clips {
		writeFloat(c.Start)
		writeFloat(c.End)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the path of the rendered audio for clips of sourcePath in
// format ("mp3", "wav", ...), rendering it on a miss.
func (c *Cache) Get(ctx context.Context, clips []timeline.Clip, sourcePath, format string) (string, error) {
	if !formatRe.MatchString(format) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	if len(clips) == 0 {
		return "", ErrEmptyTimeline
	}

	fp := Fingerprint(sourcePath, format, clips)
	path := filepath.Join(c.dir, fp+"."+format)

	c.lock(fp)
	defer c.unlock(fp)

	if info, err := os.Stat(path); err == nil {
		if err := c.hit(ctx, fp, path, info.Size()); err != nil {
			return "", err
		}
		c.logger.Debug("render cache hit", slog.String("fingerprint", fp))
		return path, nil
	}

	c.logger.Info("render cache miss",
		slog.String("fingerprint", fp),
		slog.Int("clips", len(clips)),
		slog.String("format", format),
	)

	if err := c.render(ctx, clips, sourcePath, format, fp, path); err != nil {
		return "", err
	}

	if err := c.evict(ctx, fp); err != nil {
		c.logger.Warn("render cache eviction failed", slog.String("error", err.Error()))
	}

	return path, nil
}

// hit records an access. Files rendered by another process are adopted into
// the index.
func (c *Cache) hit(ctx context.Context, fp, path string, size int64) error {
	now := c.now()
	found, err := c.index.touch(ctx, fp, now)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return c.index.put(ctx, Entry{Fingerprint: fp, Path: path, Size: size, CreatedAt: now, LastAccess: now})
}

func (c *Cache) render(ctx context.Context, clips []timeline.Clip, sourcePath, format, fp, path string) error {
	tmp, err := os.CreateTemp(c.dir, fp+".tmp-*."+format)
	if err != nil {
		return fmt.Errorf("create temp render file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := c.renderer.RenderTimeline(ctx, sourcePath, clips, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("render timeline: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move render into cache: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat render: %w", err)
	}

	now := c.now()
	return c.index.put(ctx, Entry{Fingerprint: fp, Path: path, Size: info.Size(), CreatedAt: now, LastAccess: now})
}

// evict removes least recently used entries until the cache fits maxBytes.
// keep and any fingerprint currently locked by a caller are never evicted.
func (c *Cache) evict(ctx context.Context, keep string) error {
	if c.maxBytes <= 0 {
		return nil
	}

	total, err := c.index.totalSize(ctx)
	if err != nil {
		return err
	}
	if total <= c.maxBytes {
		return nil
	}

	entries, err := c.index.leastRecent(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if total <= c.maxBytes {
			break
		}
		if e.Fingerprint == keep || c.inUse(e.Fingerprint) {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", e.Path, err)
		}
		if err := c.index.remove(ctx, e.Fingerprint); err != nil {
			return err
		}
		total -= e.Size
		c.logger.Info("render cache evicted",
			slog.String("fingerprint", e.Fingerprint),
			slog.Int64("size", e.Size),
		)
	}

	return nil
}

// Lookup returns the index entry for a fingerprint.
func (c *Cache) Lookup(ctx context.Context, fingerprint string) (Entry, bool, error) {
	return c.index.get(ctx, fingerprint)
}

// Size returns the total size of the indexed files.
func (c *Cache) Size(ctx context.Context) (int64, error) {
	return c.index.totalSize(ctx)
}

func (c *Cache) lock(fp string) {
	c.mu.Lock()
	l, ok := c.locks[fp]
	if !ok {
		l = &keyLock{}
		c.locks[fp] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
}

func (c *Cache) unlock(fp string) {
	c.mu.Lock()
	l := c.locks[fp]
	l.refs--
	if l.refs == 0 {
		delete(c.locks, fp)
	}
	c.mu.Unlock()

	l.mu.Unlock()
}

func (c *Cache) inUse(fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.locks[fp]
	return ok
}
