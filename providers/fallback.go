package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"truelink/internal"
	"truelink/utils"
)

// DefaultPerCallTimeout bounds each source call of a Fallback.
const DefaultPerCallTimeout = 15 * time.Second

// Source is one upstream API a Fallback can ask. Build returns the request
// URL, or an error when the source cannot be used for this request.
// Validate checks the response schema and maps it into a Result.
type Source struct {
	Name     string
	Build    func(target string, params map[string]string) (string, error)
	Validate func(data gjson.Result) (*internal.Result, error)
}

// Fallback asks several sources at once and adopts the first valid answer
// in priority order, not arrival order.
type Fallback struct {
	Provider       string
	Sources        []Source
	PerCallTimeout time.Duration
}

type sourceReply struct {
	result *internal.Result
	err    error
}

// Resolve fires every source concurrently and walks the replies in Sources
// order. Pending calls are cancelled once a winner is adopted.
func (f *Fallback) Resolve(ctx context.Context, sess *utils.Session, target string, params map[string]string) (*internal.Result, error) {
	if len(f.Sources) == 0 {
		return nil, internal.NewUpstreamError(f.Provider, "no sources configured")
	}
	timeout := f.PerCallTimeout
	if timeout <= 0 {
		timeout = DefaultPerCallTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := make([]chan sourceReply, len(f.Sources))
	for i, src := range f.Sources {
		replies[i] = make(chan sourceReply, 1)
		go func(src Source, out chan<- sourceReply) {
			res, err := f.call(ctx, sess, src, target, params, timeout)
			out <- sourceReply{res, err}
		}(src, replies[i])
	}

	reasons := make([]string, 0, len(f.Sources))
	for i, src := range f.Sources {
		var reply sourceReply
		select {
		case reply = <-replies[i]:
		case <-ctx.Done():
			return nil, internal.NewFetchError(f.Provider, ctx.Err())
		}
		if reply.err == nil {
			reply.result.Provider = f.Provider
			if reply.result.Extra == nil {
				reply.result.Extra = map[string]interface{}{}
			}
			reply.result.Extra["source"] = src.Name
			internal.LogDebug("%s: adopted answer from %s", f.Provider, src.Name)
			return reply.result, nil
		}
		internal.LogDebug("%s: %s rejected: %v", f.Provider, src.Name, reply.err)
		reasons = append(reasons, src.Name+": "+reply.err.Error())
	}

	return nil, internal.NewUpstreamError(f.Provider, strings.Join(reasons, "; "))
}

func (f *Fallback) call(ctx context.Context, sess *utils.Session, src Source, target string, params map[string]string, timeout time.Duration) (*internal.Result, error) {
	endpoint, err := src.Build(target, params)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := sess.Get(callCtx, endpoint, &utils.RequestOptions{
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("timed out")
		}
		return nil, err
	}
	if err := resp.CheckStatus(); err != nil {
		return nil, err
	}
	if !resp.ValidJSON() {
		return nil, errors.New("invalid JSON response")
	}
	res, err := src.Validate(resp.JSON())
	if err != nil {
		return nil, err
	}
	if res == nil || res.DirectURL == "" {
		return nil, errors.New("no download link in response")
	}
	return res, nil
}
