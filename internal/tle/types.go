package tle

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the source has no element set for the
	// requested catalog number.
	ErrNotFound = errors.New("tle not found")

	// ErrUnavailable is returned when no element set could be fetched and
	// none is cached.
	ErrUnavailable = errors.New("tle unavailable")
)

// Entry represents a single satellite's two-line element set.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Age returns how old the element set is at t.
func (e Entry) Age(t time.Time) time.Duration {
	return t.Sub(e.Epoch)
}
