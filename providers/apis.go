package providers

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"truelink/internal"
	"truelink/utils"
)

// Hosts with a JSON API: the page URL is turned into an API call and the
// link read from the response.

// Linkvertise bypasses linkvertise shortlinks through a public bypass API.
type Linkvertise struct {
	base
	api string
}

func NewLinkvertise() *Linkvertise {
	return &Linkvertise{
		base: base{name: "linkvertise", domains: []string{
			"linkvertise.com", "link-to.net", "direct-link.net", "up-to-down.net",
			"file-link.net", "link-center.net", "link-hub.net", "link-target.net",
		}},
		api: "https://iwoozie.baby/api/free/bypass",
	}
}

func (l *Linkvertise) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	resp, err := l.ok(sess.Get(ctx, l.api+"?url="+url.QueryEscape(rawURL), &utils.RequestOptions{
		Headers: map[string]string{
			"Referer": "https://thebypasser.com/",
			"Origin":  "https://thebypasser.com",
			"Accept":  "application/json",
		},
	}))
	if err != nil {
		return nil, err
	}
	data := resp.JSON()
	if !data.Exists() {
		return nil, l.parseErr("bypass API returned non-JSON")
	}
	if !data.Get("success").Bool() || data.Get("result").String() == "" {
		msg := data.Get("message").String()
		if msg == "" {
			msg = "bypass failed"
		}
		return nil, l.upstreamErr(msg)
	}
	res := l.direct(data.Get("result").String())
	res.Kind = internal.KindDirect
	return res, nil
}

// Pixeldrain resolves pixeldrain files and lists.
type Pixeldrain struct {
	base
	api string
}

func NewPixeldrain() *Pixeldrain {
	return &Pixeldrain{
		base: base{name: "pixeldrain", domains: []string{"pixeldrain.com", "pixeldra.in"}},
		api:  "https://pixeldrain.com/api",
	}
}

func (p *Pixeldrain) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := p.target(rawURL)
	if err != nil {
		return nil, err
	}
	id := info.LastSegment()
	if id == "" {
		return nil, p.parseErr("file id missing from URL")
	}

	infoLink := p.api + "/file/" + id + "/info"
	dlLink := p.api + "/file/" + id + "?download"
	isList := strings.Contains(info.Path, "/l/")
	if isList {
		infoLink = p.api + "/list/" + id
		dlLink = p.api + "/list/" + id + "/zip?download"
	}

	resp, err := sess.Get(ctx, infoLink, nil)
	if err != nil {
		return nil, p.fetchErr(err)
	}
	data := resp.JSON()
	if !data.Exists() {
		if err := resp.CheckStatus(); err != nil {
			return nil, p.fetchErr(err)
		}
		return nil, p.parseErr("info API returned non-JSON")
	}
	if !data.Get("success").Bool() {
		return nil, p.upstreamErr(data.Get("message").String())
	}

	res := p.direct(dlLink)
	if isList {
		res.Kind = internal.KindFolder
		res.Filename = data.Get("title").String()
		res.Extra = map[string]interface{}{"file_count": data.Get("file_count").Int()}
	} else {
		res.Filename = data.Get("name").String()
		res.Size = data.Get("size").Int()
	}
	return res, nil
}

// Onedrive resolves OneDrive share links via the shares API redirect.
type Onedrive struct {
	base
	api string
}

func NewOnedrive() *Onedrive {
	return &Onedrive{
		base: base{name: "onedrive", domains: []string{"1drv.ms", "onedrive.live.com"}},
		api:  "https://api.onedrive.com/v1.0",
	}
}

// shareToken encodes a sharing URL the way the shares API expects.
func shareToken(link string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(link))
	enc = strings.TrimRight(enc, "=")
	return "u!" + strings.NewReplacer("/", "_", "+", "-").Replace(enc)
}

func (o *Onedrive) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	link := utils.WithoutQuery(rawURL)
	api := o.api + "/shares/" + shareToken(link) + "/root/content"

	resp, err := sess.Head(ctx, api, &utils.RequestOptions{NoRedirect: true})
	if err != nil {
		return nil, o.fetchErr(err)
	}
	if resp.StatusCode != http.StatusFound {
		return nil, o.upstreamErr("share is not publicly downloadable").WithContext("status", resp.StatusCode)
	}
	loc := resp.Location()
	if loc == "" {
		return nil, o.parseErr("redirect without Location")
	}
	return o.direct(loc), nil
}

// Wetransfer resolves wetransfer.com transfers.
type Wetransfer struct {
	base
	api string
}

func NewWetransfer() *Wetransfer {
	return &Wetransfer{
		base: base{name: "wetransfer", domains: []string{"wetransfer.com", "we.tl"}},
		api:  "https://wetransfer.com/api/v4",
	}
}

func (w *Wetransfer) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := w.target(rawURL)
	if err != nil {
		return nil, err
	}
	if utils.HostMatches(info.Host, "we.tl") {
		resp, err := w.ok(sess.Get(ctx, rawURL, nil))
		if err != nil {
			return nil, err
		}
		if info, err = w.target(resp.URL.String()); err != nil {
			return nil, err
		}
	}

	transferID, securityHash := info.Segment(-2), info.Segment(-1)
	if transferID == "" || securityHash == "" {
		return nil, w.parseErr("transfer id or security hash missing")
	}

	body := map[string]string{"security_hash": securityHash, "intent": "entire_transfer"}
	resp, err := sess.PostJSON(ctx, w.api+"/transfers/"+transferID+"/download", body, &utils.RequestOptions{
		Headers: map[string]string{"X-Requested-With": "XMLHttpRequest"},
	})
	if err != nil {
		return nil, w.fetchErr(err)
	}
	data := resp.JSON()
	if link := data.Get("direct_link").String(); link != "" {
		return w.direct(link), nil
	}
	if msg := data.Get("message").String(); msg != "" {
		return nil, w.upstreamErr(msg)
	}
	if err := resp.CheckStatus(); err != nil {
		return nil, w.fetchErr(err)
	}
	return nil, w.parseErr("direct_link missing")
}

// Shrdsk resolves shrdsk.me short ids through its cloud function.
type Shrdsk struct {
	base
	api string
}

func NewShrdsk() *Shrdsk {
	return &Shrdsk{
		base: base{name: "shrdsk", domains: []string{"shrdsk.me"}},
		api:  "https://us-central1-affiliate2apk.cloudfunctions.net/get_data",
	}
}

func (s *Shrdsk) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := s.target(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := s.ok(sess.Get(ctx, s.api+"?shortid="+url.QueryEscape(info.LastSegment()), nil))
	if err != nil {
		return nil, err
	}
	data := resp.JSON()
	if data.Get("type").String() != "upload" {
		return nil, s.upstreamErr("not an upload link")
	}
	link := data.Get("video_url").String()
	if link == "" {
		return nil, s.parseErr("video_url missing")
	}
	return s.direct(link), nil
}

// Linkbox resolves linkbox.to shares.
type Linkbox struct {
	base
	api string
}

func NewLinkbox() *Linkbox {
	return &Linkbox{
		base: base{name: "linkbox", domains: []string{"linkbox.to", "lbx.to"}},
		api:  "https://www.linkbox.to/api",
	}
}

func (l *Linkbox) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := l.target(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := l.ok(sess.Get(ctx, l.api+"/file/detail?itemId="+url.QueryEscape(info.LastSegment()), nil))
	if err != nil {
		return nil, err
	}
	item := resp.JSON().Get("data.itemInfo")
	if !item.Exists() {
		return nil, l.upstreamErr("item not found")
	}
	name := item.Get("name").String()
	src := item.Get("url").String()
	parts := strings.SplitN(src, "/", 4)
	if len(parts) < 4 {
		return nil, l.parseErr("unexpected item url")
	}

	res := l.direct("https://wdl.nuplink.net/" + parts[3] + "&filename=" + url.QueryEscape(name))
	res.Filename = name
	res.Size = item.Get("size").Int()
	return res, nil
}

// Yandex resolves Yandex Disk public links.
type Yandex struct {
	base
	api string
}

func NewYandex() *Yandex {
	return &Yandex{
		base: base{name: "yandex", domains: []string{"disk.yandex.com", "disk.yandex.ru", "yadi.sk"}},
		api:  "https://cloud-api.yandex.net/v1/disk/public/resources/download",
	}
}

func (y *Yandex) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	resp, err := sess.Get(ctx, y.api+"?public_key="+url.QueryEscape(rawURL), nil)
	if err != nil {
		return nil, y.fetchErr(err)
	}
	data := resp.JSON()
	if href := data.Get("href").String(); href != "" {
		return y.direct(href), nil
	}
	if msg := data.Get("description").String(); msg != "" {
		return nil, y.upstreamErr(msg)
	}
	if err := resp.CheckStatus(); err != nil {
		return nil, y.fetchErr(err)
	}
	return nil, y.parseErr("href missing")
}
