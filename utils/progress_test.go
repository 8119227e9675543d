package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressTracker_Quiet(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressTracker(&out, 100, true)
	p.Add(40)
	p.Add(60)
	p.SetFilename("file.bin")

	summary := p.Finish()
	if summary.TotalBytes != 100 {
		t.Errorf("TotalBytes = %d, want 100", summary.TotalBytes)
	}
	if summary.Filename != "file.bin" {
		t.Errorf("Filename = %q", summary.Filename)
	}
	if out.Len() != 0 {
		t.Errorf("quiet tracker should not write, got %q", out.String())
	}
}

func TestProgressTracker_Summary(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressTracker(&out, 2048, false)
	p.Add(2048)
	p.SetFilename("out.zip")
	p.Finish()

	if !strings.Contains(out.String(), "Saved to: out.zip") {
		t.Errorf("summary missing filename: %q", out.String())
	}
	if !strings.Contains(out.String(), "Total size: 2.0 KB") {
		t.Errorf("summary missing size: %q", out.String())
	}
}

func TestProgressTracker_BarTotals(t *testing.T) {
	tests := []struct {
		name  string
		total int64
	}{
		{"known", 4096},
		{"unknown", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewProgressTracker(&out, tt.total, false)
			if p.bar == nil {
				t.Fatal("expected a progress bar when not quiet")
			}
			if tt.total > 0 && p.bar.Total() != tt.total {
				t.Errorf("bar total = %d, want %d", p.bar.Total(), tt.total)
			}
			p.Add(1024)
			if got := p.bar.Current(); got != 1024 {
				t.Errorf("bar current = %d, want 1024", got)
			}
			if summary := p.Finish(); summary.TotalBytes != 1024 {
				t.Errorf("TotalBytes = %d, want 1024", summary.TotalBytes)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
