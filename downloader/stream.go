// Package downloader relays resolved direct links to a writer and loads
// provider credentials from Netscape cookie files.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"truelink/internal"
	"truelink/utils"
)

// DefaultChunkSize is used when a Streamer is built with a non-positive size.
const DefaultChunkSize = 64 * 1024

// UpstreamStatusError is returned by Open when the direct link answers with
// anything but 200.
type UpstreamStatusError struct {
	URL        string
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// AsUpstreamStatus unwraps an *UpstreamStatusError from err.
func AsUpstreamStatus(err error) (*UpstreamStatusError, bool) {
	var se *UpstreamStatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Streamer opens direct links through the shared HTTP client.
type Streamer struct {
	client    *utils.HTTPClient
	chunkSize int
	limiter   internal.RateLimiter
}

// NewStreamer returns a streamer copying chunkSize bytes at a time. limiter
// may be nil for unlimited bandwidth.
func NewStreamer(client *utils.HTTPClient, chunkSize int, limiter internal.RateLimiter) *Streamer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Streamer{client: client, chunkSize: chunkSize, limiter: limiter}
}

// Stream is an open upstream body. Close is safe to call more than once.
type Stream struct {
	URL           string
	ContentType   string
	ContentLength int64
	Filename      string

	ctx       context.Context
	body      io.ReadCloser
	chunkSize int
	limiter   internal.RateLimiter
	closeOnce sync.Once
	closeErr  error
}

// Open starts the transfer of rawURL. The body stays open until Close; ctx
// bounds the whole transfer, so a client disconnect aborts the read.
func (s *Streamer) Open(ctx context.Context, rawURL string) (*Stream, error) {
	if _, err := utils.ParseURL(rawURL); err != nil {
		return nil, err
	}
	resp, err := s.client.Stream(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", internal.RedactURLs(rawURL), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &UpstreamStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	filename := utils.FilenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = utils.FilenameFromURL(rawURL)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Stream{
		URL:           rawURL,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Filename:      filename,
		ctx:           ctx,
		body:          resp.Body,
		chunkSize:     s.chunkSize,
		limiter:       s.limiter,
	}, nil
}

// Headers returns the response headers a relay should forward.
func (st *Stream) Headers() map[string]string {
	h := map[string]string{"Content-Type": st.ContentType}
	if st.ContentLength >= 0 {
		h["Content-Length"] = strconv.FormatInt(st.ContentLength, 10)
	}
	if st.Filename != "" {
		h["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", st.Filename)
	}
	return h
}

// CopyTo writes the body to w one chunk at a time, calling onChunk (when
// non-nil) after each write. It returns the bytes written.
func (st *Stream) CopyTo(w io.Writer, onChunk func(n int)) (int64, error) {
	src := utils.NewLimitedReader(st.ctx, st.body, st.limiter)
	buffer := make([]byte, st.chunkSize)
	var total int64

	for {
		n, err := src.Read(buffer)
		if n > 0 {
			written, writeErr := w.Write(buffer[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
			if written != n {
				return total, io.ErrShortWrite
			}
			if onChunk != nil {
				onChunk(n)
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}

		select {
		case <-st.ctx.Done():
			return total, st.ctx.Err()
		default:
		}
	}
}

// Close releases the upstream connection.
func (st *Stream) Close() error {
	st.closeOnce.Do(func() {
		st.closeErr = st.body.Close()
	})
	return st.closeErr
}
