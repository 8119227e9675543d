package internal

import "context"

// Resolver turns a page URL into a Result.
type Resolver interface {
	IsSupported(url string) bool
	Resolve(ctx context.Context, url string, opts ResolveOptions) (*Result, error)
	SupportedDomains() []string
}

// RateLimiter controls bandwidth usage
type RateLimiter interface {
	Wait(ctx context.Context, n int) error
	SetRate(bytesPerSecond int64)
}
