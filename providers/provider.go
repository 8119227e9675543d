// Package providers holds one scraper per hosting provider. Each scraper
// turns a page URL into a direct link or fails with an
// *internal.ScrapeFailure naming the stage that broke.
package providers

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"truelink/internal"
	"truelink/utils"
)

// Scraper extracts a downloadable link from a provider page.
type Scraper interface {
	Name() string
	Domains() []string
	Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error)
}

// FamilyMatcher is implemented by scrapers that claim a whole family of
// mirror hosts (gdtot.pro, new9.gdtot.dad, ...) via a host-anchored regex.
type FamilyMatcher interface {
	Family() *regexp.Regexp
}

// ParamResolver is implemented by scrapers that accept extra per-request
// parameters such as a Terabox ndus token.
type ParamResolver interface {
	ResolveWithParams(ctx context.Context, sess *utils.Session, rawURL string, params map[string]string) (*internal.Result, error)
}

// base carries the name and literal domains shared by every scraper.
type base struct {
	name    string
	domains []string
}

func (b base) Name() string      { return b.name }
func (b base) Domains() []string { return b.domains }

func (b base) fetchErr(err error) *internal.ScrapeFailure {
	return internal.NewFetchError(b.name, err)
}

func (b base) parseErr(msg string) *internal.ScrapeFailure {
	return internal.NewParseError(b.name, msg)
}

func (b base) upstreamErr(msg string) *internal.ScrapeFailure {
	return internal.NewUpstreamError(b.name, msg)
}

// ok converts a transport error or non-2xx status into a fetch failure.
func (b base) ok(resp *utils.Response, err error) (*utils.Response, error) {
	if err != nil {
		return nil, b.fetchErr(err)
	}
	if err := resp.CheckStatus(); err != nil {
		return nil, b.fetchErr(err).WithContext("status", resp.StatusCode)
	}
	return resp, nil
}

// page fetches rawURL and parses it as HTML.
func (b base) page(ctx context.Context, sess *utils.Session, rawURL string, opts *utils.RequestOptions) (*goquery.Document, *utils.Response, error) {
	resp, err := b.ok(sess.Get(ctx, rawURL, opts))
	if err != nil {
		return nil, nil, err
	}
	doc, err := b.doc(resp)
	if err != nil {
		return nil, nil, err
	}
	return doc, resp, nil
}

func (b base) doc(resp *utils.Response) (*goquery.Document, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, b.parseErr("unparsable HTML").WithCause(err)
	}
	return doc, nil
}

// target parses rawURL, reporting failures as parse errors.
func (b base) target(rawURL string) (*utils.URLInfo, error) {
	info, err := utils.ParseURL(rawURL)
	if err != nil {
		return nil, b.parseErr("invalid URL").WithCause(err)
	}
	return info, nil
}

// direct builds the common single-link result.
func (b base) direct(link string) *internal.Result {
	return &internal.Result{
		Provider:  b.name,
		Kind:      internal.KindFile,
		DirectURL: link,
	}
}

// attr returns the first match's attribute, trimmed.
func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// firstSubmatch returns group 1 of the first match of re in s.
func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Default returns every scraper in dispatch order. Credentials are captured
// at construction and never read again from the environment.
func Default(creds internal.Credentials) []Scraper {
	index := driveIndex(creds.DirectIndex)
	return []Scraper{
		NewTerabox(creds.TeraboxNDUS),
		NewLinkvertise(),
		NewMediafire(),
		NewHxfile(),
		NewAkmfiles(),
		NewRacaty(),
		NewLetsupload(),
		NewAnonfiles(),
		NewFembed(),
		NewSbembed(),
		NewOnedrive(),
		NewPixeldrain(),
		NewAntfiles(),
		NewStreamtape(),
		NewFichier(),
		NewSolidfiles(),
		NewKrakenfiles(),
		NewUploadee(),
		NewWetransfer(),
		NewShrdsk(),
		NewLinkbox(),
		NewZippyshare(),
		NewYandex(),
		NewUptobox(creds.UptoboxToken),
		NewFilepress(),
		NewGDTot(creds.GDTOTCrypt, index),
		NewSharer(index),
		NewDriveScript("hubdrive", creds.HubDriveCrypt, index),
		NewDriveScript("katdrive", creds.KatDriveCrypt, index),
		NewDriveScript("drivefire", creds.DriveFireCrypt, index),
		NewSharerPW(creds.XSRFToken, creds.LaravelSession, index),
	}
}
