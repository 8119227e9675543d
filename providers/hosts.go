package providers

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"truelink/internal"
	"truelink/utils"
)

// Single-page hosts: fetch the page (sometimes after one form post) and
// read the link from a known element or script.

var (
	mediafireDirect  = regexp.MustCompile(`https?://download\d+\.mediafire\.com/\S+/\S+/\S+`)
	mediafireQuoted  = regexp.MustCompile(`['"](https?://download\d+\.mediafire\.com/[^'"\s]+)['"]`)
	letsuploadLink   = regexp.MustCompile(`https?://letsupload\.io/[^\s"']+`)
	streamtapeScript = regexp.MustCompile(`document.*(id=[^"']+)`)
	fichierLink      = regexp.MustCompile(`^(?:https?://)?(?:[^/]+\.)?1fichier\.com/\?.+`)
	solidfilesOpts   = regexp.MustCompile(`viewerOptions',\s*(.*?)\);`)
	zippyPrefix      = regexp.MustCompile(`\.href\s*=\s*"/(.*?)/"`)
	zippySuffix      = regexp.MustCompile(`\+\s*"/(.*?)"`)
)

// Mediafire resolves mediafire.com file pages.
type Mediafire struct{ base }

func NewMediafire() *Mediafire {
	return &Mediafire{base{name: "mediafire", domains: []string{"mediafire.com"}}}
}

func (m *Mediafire) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	if link := mediafireDirect.FindString(rawURL); link != "" {
		return m.direct(link), nil
	}

	doc, resp, err := m.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if href := attr(doc, "a#downloadButton", "href"); mediafireDirect.MatchString(href) {
		return m.direct(href), nil
	}
	if link := firstSubmatch(mediafireQuoted, resp.Text()); link != "" {
		return m.direct(link), nil
	}
	return nil, m.parseErr("download link not found")
}

// Letsupload resolves letsupload.io pages.
type Letsupload struct{ base }

func NewLetsupload() *Letsupload {
	return &Letsupload{base{name: "letsupload", domains: []string{"letsupload.io"}}}
}

func (l *Letsupload) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	resp, err := l.ok(sess.PostForm(ctx, rawURL, url.Values{}, nil))
	if err != nil {
		return nil, err
	}
	if link := letsuploadLink.FindString(resp.Text()); link != "" {
		return l.direct(link), nil
	}
	return nil, l.parseErr("direct link not found")
}

// Anonfiles resolves the anonfiles family of clones that share one template.
type Anonfiles struct{ base }

func NewAnonfiles() *Anonfiles {
	return &Anonfiles{base{name: "anonfiles", domains: []string{
		"anonfiles.com", "bayfiles.com", "openload.cc", "share-online.is",
		"lolabits.se", "vshare.is", "hotfile.io", "rapidshare.nu",
		"upvid.cc", "megaupload.nz", "letsupload.cc", "filechan.org",
		"myfile.is", "anonfile.com", "anonfiles.me",
	}}}
}

func (a *Anonfiles) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	doc, _, err := a.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if href := attr(doc, "#download-url", "href"); href != "" {
		return a.direct(href), nil
	}
	return nil, a.parseErr("download button not found")
}

// Antfiles resolves antfiles.com pages.
type Antfiles struct{ base }

func NewAntfiles() *Antfiles {
	return &Antfiles{base{name: "antfiles", domains: []string{"antfiles.com"}}}
}

func (a *Antfiles) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	doc, resp, err := a.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}
	href := attr(doc, ".main-btn[href]", "href")
	if href == "" {
		return nil, a.parseErr("download button not found")
	}
	return a.direct(utils.ResolveReference(resp.URL.Scheme+"://"+resp.URL.Host+"/", strings.TrimPrefix(href, "/"))), nil
}

// Streamtape resolves streamtape video pages.
type Streamtape struct{ base }

func NewStreamtape() *Streamtape {
	return &Streamtape{base{name: "streamtape", domains: []string{
		"streamtape.com", "streamtape.to", "streamtape.net", "streamtape.cc",
		"streamtape.xyz", "strtape.cloud", "strcloud.link", "streamta.pe",
		"tapecontent.net",
	}}}
}

func (s *Streamtape) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	resp, err := s.ok(sess.Get(ctx, rawURL, nil))
	if err != nil {
		return nil, err
	}
	matches := streamtapeScript.FindAllStringSubmatch(resp.Text(), -1)
	if len(matches) == 0 {
		return nil, s.parseErr("video token not found")
	}
	return s.direct("https://streamtape.com/get_video?" + matches[len(matches)-1][1]), nil
}

// Fichier resolves 1fichier.com links. A password can be appended as
// "url::password".
type Fichier struct{ base }

func NewFichier() *Fichier {
	return &Fichier{base{name: "1fichier", domains: []string{"1fichier.com"}}}
}

func (f *Fichier) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	link, password, _ := strings.Cut(rawURL, "::")
	if !fichierLink.MatchString(link) {
		return nil, f.parseErr("invalid 1fichier link")
	}

	form := url.Values{}
	if password != "" {
		form.Set("pass", password)
	}
	resp, err := sess.PostForm(ctx, link, form, nil)
	if err != nil {
		return nil, f.fetchErr(err)
	}
	if resp.StatusCode == 404 {
		return nil, f.upstreamErr("File not found")
	}
	if _, err := f.ok(resp, nil); err != nil {
		return nil, err
	}

	doc, err := f.doc(resp)
	if err != nil {
		return nil, err
	}
	if href := attr(doc, "a.ok.btn-general.btn-orange", "href"); href != "" {
		return f.direct(href), nil
	}
	if doc.Find(`input[name="pass"]`).Length() > 0 {
		if password == "" {
			return nil, internal.NewCredentialError(f.name, "file password")
		}
		return nil, f.upstreamErr("wrong password")
	}
	if warn := strings.TrimSpace(doc.Find(".ct_warn").First().Text()); warn != "" {
		return nil, f.upstreamErr(strings.Join(strings.Fields(warn), " "))
	}
	return nil, f.parseErr("download button not found")
}

// Solidfiles resolves solidfiles.com pages.
type Solidfiles struct{ base }

func NewSolidfiles() *Solidfiles {
	return &Solidfiles{base{name: "solidfiles", domains: []string{"solidfiles.com"}}}
}

func (s *Solidfiles) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	resp, err := s.ok(sess.Get(ctx, rawURL, nil))
	if err != nil {
		return nil, err
	}
	opts := firstSubmatch(solidfilesOpts, resp.Text())
	if opts == "" || !gjson.Valid(opts) {
		return nil, s.parseErr("viewer options not found")
	}
	link := gjson.Get(opts, "downloadUrl").String()
	if link == "" {
		return nil, s.parseErr("downloadUrl missing")
	}
	res := s.direct(link)
	res.Filename = gjson.Get(opts, "nodeName").String()
	return res, nil
}

// Krakenfiles resolves krakenfiles.com pages.
type Krakenfiles struct{ base }

func NewKrakenfiles() *Krakenfiles {
	return &Krakenfiles{base{name: "krakenfiles", domains: []string{"krakenfiles.com"}}}
}

func (k *Krakenfiles) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	doc, resp, err := k.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}
	action := attr(doc, "form#dl-form", "action")
	token := attr(doc, "input#dl-token", "value")
	if action == "" || token == "" {
		return nil, k.parseErr("download form not found")
	}
	if strings.HasPrefix(action, "//") {
		action = "https:" + action
	} else {
		action = utils.ResolveReference(resp.URL.String(), action)
	}

	post, err := k.ok(sess.PostForm(ctx, action, url.Values{"token": {token}}, nil))
	if err != nil {
		return nil, err
	}
	link := post.JSON().Get("url").String()
	if link == "" {
		return nil, k.upstreamErr("no url in download response")
	}
	res := k.direct(link)
	res.Filename = strings.TrimSpace(doc.Find(".coin-name h5").First().Text())
	return res, nil
}

// Uploadee resolves upload.ee pages.
type Uploadee struct{ base }

func NewUploadee() *Uploadee {
	return &Uploadee{base{name: "upload.ee", domains: []string{"upload.ee"}}}
}

func (u *Uploadee) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	doc, _, err := u.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if href := attr(doc, "a#d_l", "href"); href != "" {
		return u.direct(href), nil
	}
	return nil, u.parseErr("download link not found")
}

// Zippyshare rebuilds the obfuscated link from the dlbutton script.
type Zippyshare struct{ base }

func NewZippyshare() *Zippyshare {
	return &Zippyshare{base{name: "zippyshare", domains: []string{"zippyshare.com"}}}
}

func (z *Zippyshare) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	doc, resp, err := z.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := s.Text(); strings.Contains(text, "dlbutton") {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, z.parseErr("dlbutton script not found")
	}

	prefix := firstSubmatch(zippyPrefix, script)
	suffix := firstSubmatch(zippySuffix, script)
	if prefix == "" || suffix == "" {
		return nil, z.parseErr("dlbutton script changed")
	}
	return z.direct("https://" + resp.URL.Host + "/" + prefix + "/0/" + suffix), nil
}
