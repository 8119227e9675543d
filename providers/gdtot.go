package providers

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"truelink/internal"
	"truelink/utils"
)

var (
	gdtotFamily = familyPattern("gdtot")
	gdtotMyDl   = regexp.MustCompile(`myDl\('(.*?)'\)`)
	gdtotGD     = regexp.MustCompile(`gd=(.*?)&`)
	gdbotTarget = regexp.MustCompile(`\("(.*?)"\)`)
)

// GDTot resolves gdtot mirrors into Google Drive links. The public /ddl
// endpoint is tried first, then the crypt-cookie flow, then the gdbot
// mirror for /file/ links.
type GDTot struct {
	base
	crypt  string
	index  indexFunc
	gdbot  string
	sharer *Sharer
}

func NewGDTot(crypt string, index indexFunc) *GDTot {
	return &GDTot{
		base:   base{name: "gdtot", domains: []string{"gdtot.pro", "gdtot.dad"}},
		crypt:  crypt,
		index:  index,
		gdbot:  "https://gdbot.xyz",
		sharer: NewSharer(index),
	}
}

func (g *GDTot) Family() *regexp.Regexp { return gdtotFamily }

func (g *GDTot) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := g.target(rawURL)
	if err != nil {
		return nil, err
	}
	id := info.LastSegment()
	if id == "" {
		return nil, g.parseErr("file id missing from URL")
	}
	origin := info.Origin()

	if g.crypt != "" {
		sess.SetCookie(origin, "crypt", g.crypt)
	}
	doc, _, err := g.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}
	title, _ := doc.Find(`meta[property^="og:description"]`).First().Attr("content")
	title = strings.TrimSpace(title)

	titled := func(res *internal.Result) *internal.Result {
		if res.Filename == "" {
			res.Filename = title
		}
		return res
	}

	ddl, err := g.ok(sess.PostForm(ctx, origin+"/ddl", url.Values{"dl": {id}}, nil))
	if err != nil {
		return nil, err
	}
	if link := firstSubmatch(gdtotMyDl, ddl.Text()); isDriveLink(link) {
		return titled(g.drive(link, g.index)), nil
	}

	var lastErr error
	if g.crypt != "" {
		res, err := g.viaCrypt(ctx, sess, origin, id)
		if err == nil {
			return titled(res), nil
		}
		lastErr = err
	}
	if strings.Contains(info.Path, "/file/") {
		res, err := g.viaGDBot(ctx, sess, id)
		if err == nil {
			return titled(res), nil
		}
		if lastErr == nil {
			lastErr = err
		}
	}
	if g.crypt == "" {
		return nil, internal.NewCredentialError(g.name, "GDTOT_CRYPT")
	}
	return nil, lastErr
}

func (g *GDTot) viaCrypt(ctx context.Context, sess *utils.Session, origin, id string) (*internal.Result, error) {
	resp, err := g.ok(sess.PostForm(ctx, origin+"/dld", url.Values{"dwnld": {id}}, nil))
	if err != nil {
		return nil, err
	}
	enc := firstSubmatch(gdtotGD, resp.Text())
	if enc == "" {
		return nil, g.upstreamErr("drive link not generated, check GDTOT_CRYPT")
	}
	if strings.Contains(enc, "%") {
		if unescaped, err := url.PathUnescape(enc); err == nil {
			enc = unescaped
		}
	}
	driveID, err := decodeB64(enc)
	if err != nil {
		return nil, g.parseErr("undecodable drive id").WithCause(err)
	}
	return g.drive("https://drive.google.com/open?id="+driveID, g.index), nil
}

// viaGDBot follows the gdbot mirror, which forwards to a sharer page.
func (g *GDTot) viaGDBot(ctx context.Context, sess *utils.Session, id string) (*internal.Result, error) {
	doc, resp, err := g.page(ctx, sess, g.gdbot+"/file/"+id, nil)
	if err != nil {
		return nil, err
	}
	href := attr(doc, `a[class*='inline-flex items-center justify-center']`, "href")
	if href == "" {
		return nil, g.parseErr("gdbot mirror link not found")
	}
	href = utils.ResolveReference(resp.URL.String(), href)

	hop, err := g.ok(sess.Get(ctx, href, nil))
	if err != nil {
		return nil, err
	}
	next := firstSubmatch(gdbotTarget, hop.Text())
	if next == "" {
		return nil, g.parseErr("gdbot redirect target not found")
	}
	if isDriveLink(next) {
		return g.drive(next, g.index), nil
	}

	res, err := g.sharer.Resolve(ctx, sess, next)
	if err != nil {
		return nil, err
	}
	res.Provider = g.name
	return res, nil
}
