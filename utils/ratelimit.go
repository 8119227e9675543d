package utils

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"truelink/internal"
)

// HostLimiter paces outbound requests per upstream host so a batch aimed at
// one provider does not hammer it.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing rps requests per second per host.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until a request to host may proceed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.limiter(strings.ToLower(host)).Wait(ctx)
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.rps, h.burst)
		h.limiters[host] = l
	}
	return l
}

// BandwidthLimiter implements internal.RateLimiter on a token bucket where
// one token is one byte. A zero rate disables limiting.
type BandwidthLimiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

// NewBandwidthLimiter creates a limiter for bytesPerSecond.
func NewBandwidthLimiter(bytesPerSecond int64) internal.RateLimiter {
	b := &BandwidthLimiter{}
	b.SetRate(bytesPerSecond)
	return b
}

// Wait blocks until n bytes may be transferred.
func (b *BandwidthLimiter) Wait(ctx context.Context, n int) error {
	b.mu.RLock()
	l := b.limiter
	b.mu.RUnlock()
	if l == nil {
		return ctx.Err()
	}

	// WaitN rejects requests larger than the burst, so split them.
	burst := l.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := l.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

// SetRate changes the allowed bytes per second.
func (b *BandwidthLimiter) SetRate(bytesPerSecond int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bytesPerSecond <= 0 {
		b.limiter = nil
		return
	}
	b.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))
}

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	lim internal.RateLimiter
}

// NewLimitedReader wraps r so reads are paced by lim. A nil lim returns r.
func NewLimitedReader(ctx context.Context, r io.Reader, lim internal.RateLimiter) io.Reader {
	if lim == nil {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, lim: lim}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.lim.Wait(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

var rateSuffixes = map[string]int64{
	"B":  1,
	"K":  1 << 10,
	"KB": 1 << 10,
	"M":  1 << 20,
	"MB": 1 << 20,
	"G":  1 << 30,
	"GB": 1 << 30,
	"T":  1 << 40,
	"TB": 1 << 40,
}

// ParseRateLimit parses human-readable rate limit strings (e.g., "5M", "1.5GB")
func ParseRateLimit(rateStr string) (int64, error) {
	rateStr = strings.TrimSpace(rateStr)
	if rateStr == "" {
		return 0, nil
	}

	if val, err := strconv.ParseInt(rateStr, 10, 64); err == nil {
		if val < 0 {
			return 0, fmt.Errorf("rate cannot be negative: %d", val)
		}
		return val, nil
	}

	upper := strings.ToUpper(rateStr)
	i := len(upper)
	for i > 0 && upper[i-1] >= 'A' && upper[i-1] <= 'Z' {
		i--
	}
	numStr, suffix := rateStr[:i], upper[i:]
	if numStr == "" {
		return 0, fmt.Errorf("invalid rate format: %s", rateStr)
	}

	multiplier, ok := rateSuffixes[suffix]
	if !ok {
		return 0, fmt.Errorf("unsupported rate suffix: %s (supported: B, K/KB, M/MB, G/GB, T/TB)", suffix)
	}

	value, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value in rate: %s", numStr)
	}
	if value < 0 {
		return 0, fmt.Errorf("rate cannot be negative: %s", numStr)
	}

	result := int64(value * float64(multiplier))
	if result < 0 {
		return 0, fmt.Errorf("rate value overflow")
	}
	return result, nil
}
