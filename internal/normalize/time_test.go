package normalize

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  time.Time
		ok    bool
	}{
		{"rfc3339", "2026-03-01T12:00:00Z", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), true},
		{"date only", "2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"slash date", "2026/03/01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"gviz date", "Date(2026,2,1)", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"gviz datetime", "Date(2026,2,1,13,30,0)", time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC), true},
		{"epoch seconds", int64(1767225600), time.Unix(1767225600, 0).UTC(), true},
		{"epoch millis", int64(1767225600000), time.UnixMilli(1767225600000).UTC(), true},
		{"epoch string", "1767225600", time.Unix(1767225600, 0).UTC(), true},
		{"epoch float", float64(1767225600), time.Unix(1767225600, 0).UTC(), true},
		{"native time", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"garbage", "next tuesday-ish", time.Time{}, false},
		{"empty string", "", time.Time{}, false},
		{"nil", nil, time.Time{}, false},
		{"zero epoch", int64(0), time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTime(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTime(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
