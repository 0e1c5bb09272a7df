// Package cache persists flattened Overpass element tables on disk,
// one CSV file per (bounding box, object-set) combination, with an
// in-process LRU layer in front of the files.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/NERVsystems/osmshapes/pkg/geo"
	"github.com/NERVsystems/osmshapes/pkg/monitoring"
	"github.com/NERVsystems/osmshapes/pkg/osm"
	"github.com/NERVsystems/osmshapes/pkg/tracing"
)

const (
	// DefaultTTL is how long a cache file stays fresh. The source data
	// changes slowly; a stale entry is refetched, never served.
	DefaultTTL = 24 * time.Hour

	// MaxMemoryEntries bounds the in-process element table cache
	MaxMemoryEntries = 64

	checksumSuffix = ".sha256"
)

// Store is a disk-backed element table cache. Files are written
// atomically and carry a SHA-256 sidecar; a file that fails checksum or
// row validation surfaces CACHE_CORRUPT instead of truncated geometry.
type Store struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger
	mem    *expirable.LRU[string, []osm.Element]
}

// NewStore creates a cache store rooted at dir, creating it if needed.
// A ttl of 0 means DefaultTTL; a negative ttl disables expiry.
func NewStore(dir string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	memTTL := ttl
	if memTTL < 0 {
		memTTL = 0 // expirable treats 0 as no expiry
	}

	return &Store{
		dir:    dir,
		ttl:    ttl,
		logger: logger.With("component", "element_cache"),
		mem:    expirable.NewLRU[string, []osm.Element](MaxMemoryEntries, nil, memTTL),
	}, nil
}

// Key derives the cache key for a bounding box and object set by
// joining the box's four components and the object names with
// underscores.
func Key(bbox geo.BoundingBox, objects []string) string {
	parts := make([]string, 0, 4)
	for _, c := range bbox.Components() {
		parts = append(parts, geo.FormatCoord(c))
	}
	return fmt.Sprintf("osm_data_%s_osm_objects_%s",
		strings.Join(parts, "_"), strings.Join(objects, "_"))
}

// Path returns the cache file path for a key
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".csv")
}

// Get returns the cached element table for key. The second return is
// false on any miss (absent, stale, or evicted). A file that exists but
// fails integrity validation returns a CACHE_CORRUPT error.
func (s *Store) Get(key string) ([]osm.Element, bool, error) {
	if elements, ok := s.mem.Get(key); ok {
		monitoring.RecordCacheHit(tracing.CacheTypeElementMemory)
		return elements, true, nil
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeElementMemory)

	path := s.Path(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			monitoring.RecordCacheMiss(tracing.CacheTypeElementDisk)
			return nil, false, nil
		}
		return nil, false, osm.NewError(osm.ErrCacheCorrupt, "cache file is unreadable").
			WithPath(path).Wrap(err)
	}

	if s.ttl > 0 && time.Since(info.ModTime()) > s.ttl {
		s.logger.Info("cache file is stale, treating as miss",
			"key", key, "age", time.Since(info.ModTime()))
		monitoring.RecordCacheMiss(tracing.CacheTypeElementDisk)
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, osm.NewError(osm.ErrCacheCorrupt, "cache file is unreadable").
			WithPath(path).Wrap(err)
	}

	if err := s.verifyChecksum(path, data); err != nil {
		return nil, false, err
	}

	elements, err := decodeTable(data)
	if err != nil {
		return nil, false, osm.NewError(osm.ErrCacheCorrupt, "cache file failed validation").
			WithPath(path).Wrap(err)
	}

	monitoring.RecordCacheHit(tracing.CacheTypeElementDisk)
	s.mem.Add(key, elements)
	monitoring.UpdateCacheSize(tracing.CacheTypeElementMemory, s.mem.Len())
	return elements, true, nil
}

// Put persists the element table under key. The CSV and its checksum
// sidecar are written to temp files and renamed into place, so a
// concurrent reader never observes a partial write.
func (s *Store) Put(key string, elements []osm.Element) error {
	data, err := encodeTable(elements)
	if err != nil {
		return fmt.Errorf("failed to encode element table: %w", err)
	}

	path := s.Path(key)
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	sum := sha256.Sum256(data)
	if err := writeAtomic(path+checksumSuffix, []byte(hex.EncodeToString(sum[:])+"\n")); err != nil {
		return fmt.Errorf("failed to write cache checksum: %w", err)
	}

	s.mem.Add(key, elements)
	monitoring.UpdateCacheSize(tracing.CacheTypeElementMemory, s.mem.Len())
	s.logger.Debug("persisted element table", "key", key, "elements", len(elements))
	return nil
}

// Invalidate removes the cached entry for key from memory and disk
func (s *Store) Invalidate(key string) error {
	s.mem.Remove(key)
	path := s.Path(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(path + checksumSuffix); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// verifyChecksum compares the file body against its sidecar. A missing
// sidecar is corrupt: files written by this store always carry one.
func (s *Store) verifyChecksum(path string, data []byte) error {
	want, err := os.ReadFile(path + checksumSuffix)
	if err != nil {
		return osm.NewError(osm.ErrCacheCorrupt, "cache checksum sidecar is missing").
			WithPath(path).Wrap(err)
	}

	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != strings.TrimSpace(string(want)) {
		return osm.NewError(osm.ErrCacheCorrupt, "cache file checksum mismatch").
			WithPath(path)
	}
	return nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
