package providers

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"truelink/internal"
	"truelink/utils"
)

var (
	fembedSource = regexp.MustCompile(`(/api/source/[^"']+)`)
	quotedArg    = regexp.MustCompile(`'([^']*)'`)
	directText   = regexp.MustCompile(`(?i)^\s*direct`)
)

// Fembed resolves fembed-style video embeds. Every quality is reported;
// the last (highest) one becomes the direct link.
type Fembed struct {
	base
	apiHost string
}

func NewFembed() *Fembed {
	return &Fembed{
		base: base{name: "fembed", domains: []string{
			"fembed.com", "fembed.net", "femax20.com", "fcdn.stream", "feurl.com",
			"layarkacaxxi.icu", "naniplay.nanime.in", "naniplay.nanime.biz",
			"naniplay.com", "mm9842.com", "suzihaza.com", "vanfem.com",
		}},
		apiHost: "https://layarkacaxxi.icu",
	}
}

func (f *Fembed) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	page := strings.Replace(rawURL, "/v/", "/f/", 1)
	resp, err := f.ok(sess.Get(ctx, page, nil))
	if err != nil {
		return nil, err
	}
	path := firstSubmatch(fembedSource, resp.Text())
	if path == "" {
		return nil, f.parseErr("source API path not found")
	}

	src, err := f.ok(sess.PostForm(ctx, f.apiHost+path, url.Values{}, nil))
	if err != nil {
		return nil, err
	}
	data := src.JSON()
	if !data.Get("success").Bool() && data.Get("success").Exists() {
		return nil, f.upstreamErr(data.Get("data").String())
	}
	files := data.Get("data").Array()
	if len(files) == 0 {
		return nil, f.upstreamErr("no video sources")
	}

	qualities := map[string]interface{}{}
	var last string
	for _, file := range files {
		link := file.Get("file").String()
		if link == "" {
			continue
		}
		head, err := sess.Head(ctx, link, &utils.RequestOptions{NoRedirect: true})
		if err != nil {
			return nil, f.fetchErr(err)
		}
		if loc := head.Location(); loc != "" {
			link = loc
		}
		if label := file.Get("label").String(); label != "" {
			qualities[label] = link
		}
		last = link
	}
	if last == "" {
		return nil, f.parseErr("sources without file links")
	}

	res := f.direct(last)
	if len(qualities) > 0 {
		res.Extra = map[string]interface{}{"qualities": qualities}
	}
	return res, nil
}

// Sbembed resolves streamsb-family embeds through their download page.
type Sbembed struct {
	base
	dlBase string
}

func NewSbembed() *Sbembed {
	return &Sbembed{
		base: base{name: "sbembed", domains: []string{
			"sbembed.com", "sbembed1.com", "sbplay.org", "sbvideo.net",
			"streamsb.net", "sbplay.one", "cloudemb.com", "playersb.com",
			"tubesb.com", "sbplay1.com", "embedsb.com", "watchsb.com",
			"sbplay2.com", "japopav.tv", "viewsb.com", "sbfast.com",
			"sbfull.com", "javplaya.com", "ssbstream.net", "p1ayerjavseen.com",
			"sbthe.com", "sbchill.com", "sblongvu.com", "sbanh.com",
		}},
		dlBase: "https://sbembed.com",
	}
}

func (s *Sbembed) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	doc, _, err := s.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}

	type dlArgs struct{ id, mode, hash string }
	var entries []dlArgs
	doc.Find(`a[onclick^="download_video"]`).Each(func(_ int, a *goquery.Selection) {
		onclick, _ := a.Attr("onclick")
		args := quotedArg.FindAllStringSubmatch(onclick, -1)
		if len(args) >= 3 {
			entries = append(entries, dlArgs{args[0][1], args[1][1], args[2][1]})
		}
	})
	if len(entries) == 0 {
		return nil, s.parseErr("no download entries")
	}

	var last string
	for _, e := range entries {
		q := url.Values{"op": {"download_orig"}, "id": {e.id}, "mode": {e.mode}, "hash": {e.hash}}
		dl, _, err := s.page(ctx, sess, s.dlBase+"/dl?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		dl.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if directText.MatchString(a.Text()) {
				if href, ok := a.Attr("href"); ok && href != "" {
					last = href
					return false
				}
			}
			return true
		})
	}
	if last == "" {
		return nil, s.parseErr("direct link not found on download page")
	}
	return s.direct(last), nil
}
