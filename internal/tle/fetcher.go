package tle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php"

	// maxBodySize bounds a single-object response. One element set is a few
	// hundred bytes.
	maxBodySize = 1 << 20
)

// Fetcher retrieves the latest element set for one satellite from a
// CelesTrak-style GP endpoint.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL.
func NewFetcher(sourceURL string, logger *slog.Logger) *Fetcher {
	if sourceURL == "" {
		sourceURL = defaultSourceURL
	}
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// requestURL adds CATNR and FORMAT to the source URL, keeping any query the
// operator configured.
func (f *Fetcher) requestURL(noradID int) (string, error) {
	u, err := url.Parse(f.sourceURL)
	if err != nil {
		return "", fmt.Errorf("parsing source URL: %w", err)
	}
	q := u.Query()
	q.Set("CATNR", strconv.Itoa(noradID))
	q.Set("FORMAT", "tle")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch performs an HTTP GET for noradID and returns its element set.
func (f *Fetcher) Fetch(ctx context.Context, noradID int) (Entry, error) {
	reqURL, err := f.requestURL(noradID)
	if err != nil {
		return Entry{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Entry{}, fmt.Errorf("fetching TLE for NORAD %d: %w", noradID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Entry{}, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return Entry{}, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodySize {
		return Entry{}, fmt.Errorf("response from %s exceeds %d byte limit", f.sourceURL, maxBodySize)
	}

	entries, err := Parse(bytes.NewReader(body), f.logger)
	if err != nil {
		return Entry{}, err
	}

	f.logger.Debug("tle fetched",
		"norad_id", noradID,
		"entries", len(entries),
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	for _, e := range entries {
		if e.NORADID == noradID {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("NORAD %d at %s: %w", noradID, f.sourceURL, ErrNotFound)
}
