package providers

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"github.com/tidwall/gjson"

	"truelink/internal"
	"truelink/utils"
)

var uptoboxID = regexp.MustCompile(`\bhttps?://.*uptobox\.(?:com|fr)/(\w+)`)

// Uptobox resolves uptobox links through the public link API. Free
// accounts get a waiting token that must be redeemed after a delay.
type Uptobox struct {
	base
	token   string
	api     string
	maxWait time.Duration
}

func NewUptobox(token string) *Uptobox {
	return &Uptobox{
		base:    base{name: "uptobox", domains: []string{"uptobox.com", "uptobox.fr"}},
		token:   token,
		api:     "https://uptobox.com/api/link",
		maxWait: 60 * time.Second,
	}
}

func (u *Uptobox) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	id := firstSubmatch(uptoboxID, rawURL)
	if id == "" {
		return nil, u.parseErr("file code not found in URL")
	}

	q := url.Values{}
	if u.token != "" {
		q.Set("token", u.token)
	}
	q.Set("file_code", id)
	api := u.api + "?" + q.Encode()

	data, err := u.call(ctx, sess, api)
	if err != nil {
		return nil, err
	}

	switch data.Get("statusCode").Int() {
	case 0:
		return u.link(data.Get("data.dlLink").String())
	case 16:
		wait := time.Duration(data.Get("data.waiting").Int()) * time.Second
		if wait > u.maxWait {
			wait = u.maxWait
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return nil, u.upstreamErr("waiting period exceeds request deadline").
				WithRetryAfter(int(wait / time.Second))
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, u.fetchErr(ctx.Err())
		case <-timer.C:
		}

		q.Set("waitingToken", data.Get("data.waitingToken").String())
		data, err = u.call(ctx, sess, u.api+"?"+q.Encode())
		if err != nil {
			return nil, err
		}
		if data.Get("statusCode").Int() != 0 {
			return nil, u.upstreamErr(data.Get("message").String())
		}
		return u.link(data.Get("data.dlLink").String())
	case 39:
		return nil, u.upstreamErr("rate limited: " + data.Get("data.waiting").String() + "s before next download").
			WithRetryAfter(int(data.Get("data.waiting").Int()))
	default:
		return nil, u.upstreamErr(data.Get("message").String())
	}
}

func (u *Uptobox) call(ctx context.Context, sess *utils.Session, api string) (gjson.Result, error) {
	resp, err := u.ok(sess.Get(ctx, api, nil))
	if err != nil {
		return gjson.Result{}, err
	}
	if !resp.ValidJSON() {
		return gjson.Result{}, u.parseErr("link API returned non-JSON")
	}
	return resp.JSON(), nil
}

func (u *Uptobox) link(dl string) (*internal.Result, error) {
	if dl == "" {
		return nil, u.parseErr("dlLink missing")
	}
	return u.direct(dl), nil
}
