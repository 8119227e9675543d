package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"truelink/downloader"
	"truelink/internal"
	"truelink/utils"
)

var (
	outputDir string
	rateLimit string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <URL>",
	Short: "Resolve a URL and download its first direct link",
	Long: `Resolve a URL and download the first direct link it yields.

The file is written as <name>.part and renamed once complete.

Examples:
  truelink fetch https://pixeldrain.com/u/abc
  truelink fetch -o downloads -r 5M https://www.mediafire.com/file/abc/file.zip/file`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var limiter internal.RateLimiter
		if rateLimit != "" {
			bytesPerSec, err := utils.ParseRateLimit(rateLimit)
			if err != nil {
				validationErr := internal.NewValidationErrorWithValue("rate_limit", "invalid format", rateLimit).
					WithSuggestion("Use formats like 1M (1 MB/s), 500K (500 KB/s), 2G (2 GB/s), or 1024 (1024 bytes/s)")
				internal.LogValidationError(validationErr)
				return fmt.Errorf("invalid rate limit format: %v", err)
			}
			limiter = utils.NewBandwidthLimiter(bytesPerSec)
			internal.LogDebug("Rate limit parsed: %s = %d bytes/sec", rateLimit, bytesPerSec)
		}

		a, err := newApp(*config)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext()
		defer stop()

		links, out := a.orch.DirectLinks(ctx, a.orch.NewRequest(args[0]))
		if out.Status != internal.StatusSuccess {
			return fmt.Errorf("failed to resolve %s: %s", args[0], out.Message)
		}
		if links.Count == 0 {
			return fmt.Errorf("no direct download links found for %s", args[0])
		}

		streamer := downloader.NewStreamer(a.client, config.ChunkSize, limiter)
		path, err := download(ctx, streamer, links.DirectLinks[0], outputDir, config.QuietMode)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("download cancelled by user")
			}
			return fmt.Errorf("download failed: %w", err)
		}
		internal.LogInfo("Download completed successfully: %s", path)
		return nil
	},
}

// download streams link into dir, writing through a .part file. It returns
// the final path.
func download(ctx context.Context, streamer *downloader.Streamer, link, dir string, quiet bool) (string, error) {
	stream, err := streamer.Open(ctx, link)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	name := utils.SanitizeFilename(stream.Filename)
	outputPath := filepath.Join(dir, name)

	part, err := utils.CreatePartialFile(outputPath)
	if err != nil {
		return "", err
	}
	partPath := part.Name()

	progress := utils.NewProgressTracker(os.Stderr, stream.ContentLength, quiet)
	progress.SetFilename(outputPath)

	_, copyErr := stream.CopyTo(part, progress.Add)
	closeErr := part.Close()
	if copyErr != nil {
		os.Remove(partPath)
		return "", copyErr
	}
	if closeErr != nil {
		os.Remove(partPath)
		return "", fmt.Errorf("failed to finalize %s: %w", partPath, closeErr)
	}

	if err := utils.AtomicRename(partPath, outputPath); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", partPath, err)
	}
	progress.Finish()
	return outputPath, nil
}

func init() {
	fetchCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory to save the file in")
	fetchCmd.Flags().StringVarP(&rateLimit, "limit-rate", "r", "", "Bandwidth limit (e.g., 5M for 5MB/s)")
}
