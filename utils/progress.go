package utils

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker renders transfer progress for the fetch command
type ProgressTracker struct {
	bar       *pb.ProgressBar
	out       io.Writer
	quiet     bool
	startTime time.Time
	current   int64
	filename  string
	mutex     sync.Mutex
}

// DownloadSummary contains final download statistics
type DownloadSummary struct {
	TotalBytes   int64
	TotalTime    time.Duration
	AverageSpeed float64 // bytes per second
	Filename     string
}

// NewProgressTracker creates a tracker for total bytes. total <= 0 means unknown.
func NewProgressTracker(out io.Writer, total int64, quiet bool) *ProgressTracker {
	tracker := &ProgressTracker{
		out:       out,
		quiet:     quiet,
		startTime: time.Now(),
	}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		bar := pb.ProgressBarTemplate(tmpl).New(0)
		bar.SetTotal(total)
		bar.SetWriter(out)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", "Downloading: ")
		tracker.bar = bar.Start()
	}

	return tracker
}

// Add records n more transferred bytes
func (p *ProgressTracker) Add(n int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current += int64(n)
	if p.bar != nil {
		p.bar.Add(n)
	}
}

// SetFilename sets the filename reported in the summary
func (p *ProgressTracker) SetFilename(filename string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.filename = filename
}

// Finish completes the progress bar and returns download summary
func (p *ProgressTracker) Finish() *DownloadSummary {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	totalTime := time.Since(p.startTime)
	if p.bar != nil {
		p.bar.Finish()
	}

	var avg float64
	if secs := totalTime.Seconds(); secs > 0 {
		avg = float64(p.current) / secs
	}

	summary := &DownloadSummary{
		TotalBytes:   p.current,
		TotalTime:    totalTime,
		AverageSpeed: avg,
		Filename:     p.filename,
	}

	if !p.quiet {
		fmt.Fprintf(p.out, "\nDownload completed successfully!\n")
		fmt.Fprintf(p.out, "Total size: %s\n", FormatBytes(summary.TotalBytes))
		fmt.Fprintf(p.out, "Total time: %v\n", summary.TotalTime.Round(time.Millisecond))
		fmt.Fprintf(p.out, "Average speed: %s/s\n", FormatBytes(int64(summary.AverageSpeed)))
		if summary.Filename != "" {
			fmt.Fprintf(p.out, "Saved to: %s\n", summary.Filename)
		}
	}

	return summary
}

// FormatBytes formats byte count as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
