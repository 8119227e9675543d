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
	driveScriptTitle = regexp.MustCompile(`>(.*?)<\/h4>`)
	driveScriptCell  = regexp.MustCompile(`>(.*?)<\/td>`)
)

var driveScriptDomains = map[string][]string{
	"hubdrive":  {"hubdrive.lat", "hubdrive.me"},
	"katdrive":  {"katdrive.org", "katdrive.in"},
	"drivefire": {"drivefire.co"},
}

// DriveScript resolves sites built on the same drive-sharing PHP script
// (hubdrive, katdrive, drivefire). Drivefire has no public direct
// download and always needs the crypt cookie.
type DriveScript struct {
	base
	crypt  string
	index  indexFunc
	family *regexp.Regexp
}

func NewDriveScript(name, crypt string, index indexFunc) *DriveScript {
	return &DriveScript{
		base:   base{name: name, domains: driveScriptDomains[name]},
		crypt:  crypt,
		index:  index,
		family: familyPattern(regexp.QuoteMeta(name)),
	}
}

func (d *DriveScript) Family() *regexp.Regexp { return d.family }

func (d *DriveScript) credential() string {
	return strings.ToUpper(d.name) + "_CRYPT"
}

func (d *DriveScript) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := d.target(rawURL)
	if err != nil {
		return nil, err
	}
	id := info.LastSegment()
	if id == "" {
		return nil, d.parseErr("file id missing from URL")
	}
	origin := info.Origin()
	if d.crypt != "" {
		sess.SetCookie(origin, "crypt", d.crypt)
	}

	resp, err := d.ok(sess.Get(ctx, rawURL, nil))
	if err != nil {
		return nil, err
	}
	page := resp.Text()
	title := strings.TrimSpace(firstSubmatch(driveScriptTitle, page))
	var size string
	if cells := driveScriptCell.FindAllStringSubmatch(page, 2); len(cells) == 2 {
		size = strings.TrimSpace(cells[1][1])
	}
	describe := func(res *internal.Result) *internal.Result {
		res.Filename = title
		res.SizeText = size
		return res
	}

	ajax := &utils.RequestOptions{Headers: map[string]string{"x-requested-with": "XMLHttpRequest"}}
	form := url.Values{"id": {id}}

	// Both the public and the crypt endpoint answer with a landing page that
	// holds the drive button.
	var dlink string
	if d.name != "drivefire" {
		direct, err := d.ok(sess.PostForm(ctx, origin+"/ajax.php?ajax=direct-download", form, ajax))
		if err != nil {
			internal.LogDebug("%s direct-download failed: %v", d.name, err)
		} else if data := direct.JSON(); data.Get("code").String() == "200" {
			dlink = data.Get("file").String()
		}
	}

	if dlink == "" {
		if d.crypt == "" {
			return nil, internal.NewCredentialError(d.name, d.credential())
		}
		dl, err := d.ok(sess.PostForm(ctx, origin+"/ajax.php?ajax=download", form, ajax))
		if err != nil {
			return nil, err
		}
		dlink = dl.JSON().Get("file").String()
		if dlink == "" {
			return nil, d.upstreamErr("download link not generated, check " + d.credential())
		}
	}
	dlink = utils.ResolveReference(origin+"/", dlink)

	doc, _, err := d.page(ctx, sess, dlink, nil)
	if err != nil {
		return nil, err
	}
	link := attr(doc, "a.btn.btn-primary.btn-user", "href")
	if link == "" {
		return nil, d.parseErr("drive button not found")
	}
	return describe(d.drive(link, d.index)), nil
}
