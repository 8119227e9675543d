package providers

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"truelink/internal"
	"truelink/utils"
)

var sharerPWToken = regexp.MustCompile(`_token\s=\s'(.*?)'`)

// errNotGenerated marks a /dl answer that is neither a link nor a file
// error. Only this case is worth a forced retry.
var errNotGenerated = errors.New("no link in response")

// SharerPW resolves sharer.pw links with a logged-in laravel session.
type SharerPW struct {
	base
	xsrf    string
	laravel string
	index   indexFunc
}

func NewSharerPW(xsrf, laravel string, index indexFunc) *SharerPW {
	return &SharerPW{
		base:    base{name: "sharerpw", domains: []string{"sharer.pw"}},
		xsrf:    xsrf,
		laravel: laravel,
		index:   index,
	}
}

func (s *SharerPW) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	if s.xsrf == "" && s.laravel == "" {
		return nil, internal.NewCredentialError(s.name, "XSRF_TOKEN or LARAVEL_SESSION")
	}

	info, err := s.target(rawURL)
	if err != nil {
		return nil, err
	}
	if s.xsrf != "" {
		sess.SetCookie(info.Origin(), "XSRF-TOKEN", s.xsrf)
	}
	if s.laravel != "" {
		sess.SetCookie(info.Origin(), "laravel_session", s.laravel)
	}

	doc, resp, err := s.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}
	token := firstSubmatch(sharerPWToken, resp.Text())
	if token == "" {
		return nil, s.parseErr("_token not found, session may have expired")
	}
	canForce := doc.Find("button#btndirect").Length() > 0
	title := strings.TrimSpace(doc.Find("h1").First().Text())

	endpoint := strings.TrimRight(utils.WithoutQuery(rawURL), "/") + "/dl"
	res, err := s.generate(ctx, sess, endpoint, token, false)
	if errors.Is(err, errNotGenerated) && canForce {
		res, err = s.generate(ctx, sess, endpoint, token, true)
	}
	if err != nil {
		return nil, err
	}
	res.Filename = title
	return res, nil
}

func (s *SharerPW) generate(ctx context.Context, sess *utils.Session, endpoint, token string, forced bool) (*internal.Result, error) {
	form := url.Values{"_token": {token}}
	if !forced {
		form.Set("nl", "1")
	}
	resp, err := s.ok(sess.PostForm(ctx, endpoint, form, &utils.RequestOptions{
		Headers: map[string]string{"x-requested-with": "XMLHttpRequest"},
	}))
	if err != nil {
		return nil, err
	}
	data := resp.JSON()
	switch data.Get("status").Int() {
	case 0:
		link := data.Get("url").String()
		if link == "" {
			return nil, s.parseErr("url missing")
		}
		return s.drive(link, s.index), nil
	case 2:
		return nil, s.upstreamErr(strings.ReplaceAll(data.Get("message").String(), "<br/>", "\n"))
	default:
		return nil, s.upstreamErr("link generation failed").WithCause(errNotGenerated)
	}
}
