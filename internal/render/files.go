package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/metrics"
)

// Dir writes charts as PNG files into one directory and keeps at most
// maxFiles of them.
type Dir struct {
	renderer *Renderer
	dir      string
	maxFiles int
	logger   *slog.Logger
}

// NewDir creates a chart directory writer. maxFiles <= 0 keeps everything.
func NewDir(renderer *Renderer, dir string, maxFiles int, logger *slog.Logger) *Dir {
	return &Dir{renderer: renderer, dir: dir, maxFiles: maxFiles, logger: logger}
}

// Path returns the directory charts are written to.
func (d *Dir) Path() string { return d.dir }

// RenderFile draws c into a new file and returns its base name. prefix makes
// the name unique per request so browsers never show a cached chart for
// different data.
func (d *Dir) RenderFile(prefix string, c Chart) (string, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("creating chart dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s_%d.png", slug(c.Spacecraft), slug(c.Location), slug(prefix), c.Index)
	path := filepath.Join(d.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating chart file: %w", err)
	}
	if err := d.renderer.Render(f, c); err != nil {
		f.Close()
		os.Remove(path)
		metrics.IncRenderErrors()
		return "", err
	}
	if err := f.Close(); err != nil {
		metrics.IncRenderErrors()
		return "", fmt.Errorf("closing chart file: %w", err)
	}
	return name, nil
}

// Prune removes the oldest charts beyond maxFiles.
func (d *Dir) Prune() error {
	if d.maxFiles <= 0 {
		return nil
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("listing chart dir: %w", err)
	}

	type chartFile struct {
		name string
		mod  int64
	}
	var files []chartFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".png" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, chartFile{name: e.Name(), mod: info.ModTime().UnixNano()})
	}
	if len(files) <= d.maxFiles {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].mod != files[j].mod {
			return files[i].mod < files[j].mod
		}
		return files[i].name < files[j].name
	})
	removed := 0
	for _, f := range files[:len(files)-d.maxFiles] {
		if err := os.Remove(filepath.Join(d.dir, f.name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("pruning chart %s: %w", f.name, err)
		}
		removed++
	}
	d.logger.Debug("charts pruned", "removed", removed, "kept", d.maxFiles)
	return nil
}

// slug keeps letters and digits and turns everything else into single
// dashes, so names are safe in file names and URLs.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
