package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Checker runs named readiness checks.
type Checker struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]Check
}

// NewChecker creates a Checker with no checks; it is always ready.
func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

// Add registers a check. Checks run in the order they were added.
func (c *Checker) Add(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
	}
	c.checks[name] = check
}

// Ready runs every check and returns the first failure.
func (c *Checker) Ready(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, name := range c.names {
		if err := c.checks[name](ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Readyz returns 200 "ready\n" when every check passes and 503 with the
// failing check otherwise.
func (c *Checker) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain")
	if err := c.Ready(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "not ready: %v\n", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}

// DirWritable checks that files can be created in dir, creating it if needed.
func DirWritable(dir string) Check {
	return func(context.Context) error {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".ready-*")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(name))
	}
}
