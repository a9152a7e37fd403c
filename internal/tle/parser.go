package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads NORAD TLE data from r. Both the 3-line format (name line
// followed by the two element lines) and bare 2-line sets are accepted; a
// bare set is named after its catalog number. Malformed entries are skipped
// with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i+1 < len(lines); {
		name := ""
		first := i
		if !strings.HasPrefix(lines[i], "1 ") {
			name = strings.TrimSpace(lines[i])
			first = i + 1
		}
		if first+1 >= len(lines) {
			break
		}
		line1, line2 := lines[first], lines[first+1]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronise on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}
		next := first + 2

		entry, err := parseEntry(name, line1, line2)
		if err != nil {
			logger.Warn("skipping invalid TLE entry", "name", name, "error", err)
			i = next
			continue
		}
		entries = append(entries, entry)
		i = next
	}

	return entries, nil
}

func parseEntry(name, line1, line2 string) (Entry, error) {
	if len(line1) < 32 {
		return Entry{}, fmt.Errorf("line1 too short (%d chars)", len(line1))
	}

	// NORAD ID in line1 cols 3-7.
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid NORAD ID %q: %w", noradStr, err)
	}
	if len(line2) < 7 || strings.TrimSpace(line2[2:7]) != noradStr {
		return Entry{}, fmt.Errorf("line2 does not belong to NORAD %d", noradID)
	}

	// Epoch in line1 cols 19-32.
	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return Entry{}, err
	}

	if name == "" {
		name = strconv.Itoa(noradID)
	}
	return Entry{
		NORADID: noradID,
		Name:    name,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}
	if dayOfYear < 1 || dayOfYear >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %v out of range", dayOfYear)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}

// Format writes e in the 3-line format Parse reads.
func Format(w io.Writer, e Entry) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", e.Name, e.Line1, e.Line2)
	return err
}
