package tle

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int
		names []string
	}{
		{"three line", issTLE, []int{25544}, []string{issName}},
		{"two line", issLine1 + "\n" + issLine2 + "\n", []int{25544}, []string{"25544"}},
		{"mixed", issLine1 + "\n" + issLine2 + "\n" + cssName + "\n" + cssLine1 + "\n" + cssLine2 + "\n", []int{25544, 48274}, []string{"25544", cssName}},
		{"crlf and blank lines", strings.ReplaceAll(issTLE, "\n", "\r\n\r\n"), []int{25544}, []string{issName}},
		{"garbage before entry", "No GP data found\n" + issTLE, []int{25544}, []string{issName}},
		{"mismatched lines", issName + "\n" + issLine1 + "\n" + cssLine2 + "\n", nil, nil},
		{"empty", "", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tt.input), testLogger)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.want))
			}
			for i, e := range entries {
				if e.NORADID != tt.want[i] || e.Name != tt.names[i] {
					t.Errorf("entry %d = %d %q, want %d %q", i, e.NORADID, e.Name, tt.want[i], tt.names[i])
				}
			}
		})
	}
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"24100.50000000", time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC), false},
		{"57001.00000000", time.Date(1957, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"00001.25000000", time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC), false},
		{"24", time.Time{}, true},
		{"2x100.5", time.Time{}, true},
		{"24000.50000000", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEpoch(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEpoch(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseEpoch(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	entries, err := Parse(strings.NewReader(issTLE), testLogger)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Parse: %v, %d entries", err, len(entries))
	}
	var buf bytes.Buffer
	if err := Format(&buf, entries[0]); err != nil {
		t.Fatal(err)
	}
	if buf.String() != issTLE {
		t.Errorf("Format = %q, want %q", buf.String(), issTLE)
	}
	if age := entries[0].Age(entries[0].Epoch.Add(time.Hour)); age != time.Hour {
		t.Errorf("Age = %s, want 1h", age)
	}
}
