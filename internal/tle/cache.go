package tle

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cache keeps fetched element sets on disk, one file per fetch named
// tle_<norad>_<unix>.txt.
type Cache struct {
	dir      string
	maxFiles int
	logger   *slog.Logger
}

// NewCache creates a Cache that stores files in dir and keeps at most
// maxFiles per satellite.
func NewCache(dir string, maxFiles int, logger *slog.Logger) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
		logger:   logger,
	}
}

// Write saves e under its fetch time and prunes that satellite's oldest
// files beyond maxFiles.
func (c *Cache) Write(e Entry, fetchedAt time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	var buf bytes.Buffer
	if err := Format(&buf, e); err != nil {
		return err
	}

	path := filepath.Join(c.dir, fmt.Sprintf("tle_%d_%d.txt", e.NORADID, fetchedAt.Unix()))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune(e.NORADID)
}

// LoadLatest reads the newest cached element set for noradID and the time
// it was fetched.
func (c *Cache) LoadLatest(noradID int) (Entry, time.Time, error) {
	files, err := c.listFiles(noradID)
	if err != nil {
		return Entry{}, time.Time{}, err
	}
	if len(files) == 0 {
		return Entry{}, time.Time{}, fmt.Errorf("no cache files for NORAD %d: %w", noradID, ErrNotFound)
	}

	// Files are sorted oldest first; take the last one.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return Entry{}, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}

	entries, err := Parse(bytes.NewReader(data), c.logger)
	if err != nil {
		return Entry{}, time.Time{}, err
	}
	for _, e := range entries {
		if e.NORADID == noradID {
			return e, latest.ts, nil
		}
	}
	return Entry{}, time.Time{}, fmt.Errorf("cache file %s holds no element set for NORAD %d: %w", latest.name, noradID, ErrNotFound)
}

// LoadFresh is LoadLatest restricted to files fetched no more than maxAge
// before now.
func (c *Cache) LoadFresh(noradID int, maxAge time.Duration, now time.Time) (Entry, error) {
	e, fetchedAt, err := c.LoadLatest(noradID)
	if err != nil {
		return Entry{}, err
	}
	if now.Sub(fetchedAt) > maxAge {
		return Entry{}, fmt.Errorf("cached TLE for NORAD %d is %s old: %w", noradID, now.Sub(fetchedAt).Truncate(time.Second), ErrNotFound)
	}
	return e, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

func (c *Cache) listFiles(noradID int) ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	prefix := fmt.Sprintf("tle_%d_", noradID)
	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".txt") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".txt")
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func (c *Cache) prune(noradID int) error {
	files, err := c.listFiles(noradID)
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}
