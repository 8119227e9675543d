package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"truelink/internal"
	"truelink/utils"
)

// Orchestrator applies request limits around a Resolver and shapes every
// attempt into an Outcome. It never retries on its own; the retry budget
// belongs to the HTTP session each resolution gets.
type Orchestrator struct {
	resolver internal.Resolver
	pool     *WorkerPool
	cfg      internal.Config
}

// NewOrchestrator wires a resolver to a worker pool. cfg is copied.
func NewOrchestrator(resolver internal.Resolver, pool *WorkerPool, cfg internal.Config) *Orchestrator {
	return &Orchestrator{resolver: resolver, pool: pool, cfg: cfg}
}

// Resolver returns the underlying resolver.
func (o *Orchestrator) Resolver() internal.Resolver {
	return o.resolver
}

// ClampTimeout bounds d to [1s, MaxTimeout].
func (o *Orchestrator) ClampTimeout(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	if limit := o.cfg.MaxTimeoutDuration(); d > limit {
		return limit
	}
	return d
}

// NewRequest returns a request for rawURL carrying the configured defaults.
func (o *Orchestrator) NewRequest(rawURL string) internal.ResolutionRequest {
	return internal.ResolutionRequest{
		URL:        rawURL,
		Timeout:    o.cfg.DefaultTimeoutDuration(),
		MaxRetries: o.cfg.DefaultRetries,
		UseCache:   true,
	}
}

// ClampRetries bounds n to [0, internal.MaxRetries].
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > internal.MaxRetries {
		return internal.MaxRetries
	}
	return n
}

// ResolveSingle resolves one URL. It always returns an Outcome with the
// elapsed time set, whatever happened.
func (o *Orchestrator) ResolveSingle(ctx context.Context, req internal.ResolutionRequest) internal.Outcome {
	start := time.Now()
	out := o.resolveSingle(ctx, req)
	out.URL = req.URL
	out.ProcessingTime = internal.Seconds(time.Since(start))
	return out
}

func (o *Orchestrator) resolveSingle(ctx context.Context, req internal.ResolutionRequest) internal.Outcome {
	info, err := utils.ParseURL(req.URL)
	if err != nil {
		return internal.Outcome{Status: internal.StatusUnsupported, Message: err.Error()}
	}
	if !o.resolver.IsSupported(req.URL) {
		return internal.Outcome{Status: internal.StatusUnsupported, Message: "unsupported domain: " + info.Host}
	}

	timeout := o.ClampTimeout(req.Timeout)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := internal.ResolveOptions{
		Retries:  ClampRetries(req.MaxRetries),
		UseCache: req.UseCache,
		Params:   req.Params,
	}
	res, err := o.pool.Do(tctx, func(jctx context.Context) (*internal.Result, error) {
		return o.resolver.Resolve(jctx, req.URL, opts)
	})

	switch {
	case errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		internal.LogWarn("resolution of %s timed out after %v", req.URL, timeout)
		return internal.Outcome{
			Status:  internal.StatusTimeout,
			Message: fmt.Sprintf("resolution timed out after %ds", int(timeout/time.Second)),
		}
	case err != nil:
		if internal.IsUnsupported(err) {
			return internal.Outcome{Status: internal.StatusUnsupported, Message: err.Error()}
		}
		if f, ok := internal.AsScrapeFailure(err); ok {
			internal.LogScrapeFailure(f)
		} else {
			internal.LogError("resolution of %s failed: %v", req.URL, err)
		}
		return internal.Outcome{Status: internal.StatusError, Message: internal.RedactURLs(err.Error())}
	case res == nil:
		return internal.Outcome{Status: internal.StatusError, Message: "resolver returned no result"}
	}

	kind := res.Kind
	if kind == "" {
		kind = internal.KindFile
	}
	return internal.Outcome{Status: internal.StatusSuccess, Type: kind, Data: res.Payload()}
}

// ResolveBatch resolves urls concurrently, at most ConcurrentLimit at a
// time. Results keep the input order and one failure never affects the
// others. tmpl supplies timeout, retries and cache flags for every URL.
func (o *Orchestrator) ResolveBatch(ctx context.Context, urls []string, tmpl internal.ResolutionRequest) (internal.BatchOutcome, error) {
	if len(urls) == 0 {
		return internal.BatchOutcome{}, internal.NewValidationError("urls", "at least one URL is required")
	}
	if len(urls) > o.cfg.MaxBatchSize {
		return internal.BatchOutcome{}, internal.NewValidationErrorWithValue("urls",
			fmt.Sprintf("batch size exceeds maximum of %d", o.cfg.MaxBatchSize), len(urls))
	}

	start := time.Now()
	results := make([]internal.Outcome, len(urls))
	sem := semaphore.NewWeighted(int64(o.cfg.ConcurrentLimit))
	var wg sync.WaitGroup

	for i, u := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = internal.Outcome{URL: u, Status: internal.StatusError, Message: "batch cancelled"}
			continue
		}
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			defer sem.Release(1)
			req := tmpl
			req.URL = u
			results[i] = o.ResolveSingle(ctx, req)
		}(i, u)
	}
	wg.Wait()

	batch := internal.BatchOutcome{
		Count:               len(urls),
		Results:             results,
		TotalProcessingTime: internal.Seconds(time.Since(start)),
	}
	for _, r := range results {
		if r.Status == internal.StatusSuccess {
			batch.SuccessCount++
		} else {
			batch.ErrorCount++
		}
	}
	internal.LogInfo("batch of %d resolved: %d ok, %d failed", batch.Count, batch.SuccessCount, batch.ErrorCount)
	return batch, nil
}

// DirectLinks resolves req and flattens the payload into downloadable
// links. The Outcome is returned so callers can report failures.
func (o *Orchestrator) DirectLinks(ctx context.Context, req internal.ResolutionRequest) (internal.DirectLinks, internal.Outcome) {
	start := time.Now()
	out := o.ResolveSingle(ctx, req)
	dl := internal.DirectLinks{URL: req.URL, DirectLinks: []string{}}
	if out.Status == internal.StatusSuccess {
		dl.DirectLinks = ExtractDirectLinks(out.Data)
	}
	dl.Count = len(dl.DirectLinks)
	dl.ProcessingTime = internal.Seconds(time.Since(start))
	return dl, out
}
