package providers

import (
	"context"
	"net/url"
	"strings"

	"truelink/internal"
	"truelink/utils"
)

// XFileSharing covers hosts running the XFileSharing script: one POST with
// op=download2 returns a page holding the expiring link.
type XFileSharing struct {
	base
	fullPathID bool
	selectors  []string
}

// NewHxfile resolves hxfile.co.
func NewHxfile() *XFileSharing {
	return &XFileSharing{
		base:       base{name: "hxfile", domains: []string{"hxfile.co"}},
		fullPathID: true,
		selectors:  []string{"a.btn.btn-dow", "a#uniqueExpirylink"},
	}
}

// NewAkmfiles resolves akmfiles.
func NewAkmfiles() *XFileSharing {
	return &XFileSharing{
		base:      base{name: "akmfiles", domains: []string{"akmfiles.com", "akmfls.xyz"}},
		selectors: []string{"a.btn.btn-dow"},
	}
}

// NewRacaty resolves racaty.
func NewRacaty() *XFileSharing {
	return &XFileSharing{
		base:      base{name: "racaty", domains: []string{"racaty.io", "racaty.net"}},
		selectors: []string{"a[id*=uniqueExpirylink]"},
	}
}

func (x *XFileSharing) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := x.target(rawURL)
	if err != nil {
		return nil, err
	}

	id := info.LastSegment()
	if x.fullPathID {
		id = strings.Trim(info.Path, "/")
	}
	if id == "" {
		return nil, x.parseErr("file id missing from URL")
	}

	form := url.Values{
		"op":             {"download2"},
		"id":             {id},
		"rand":           {""},
		"referer":        {""},
		"method_free":    {""},
		"method_premium": {""},
	}
	resp, err := x.ok(sess.PostForm(ctx, rawURL, form, nil))
	if err != nil {
		return nil, err
	}
	doc, err := x.doc(resp)
	if err != nil {
		return nil, err
	}

	for _, sel := range x.selectors {
		if href := attr(doc, sel, "href"); href != "" {
			return x.direct(href), nil
		}
	}
	if msg := strings.TrimSpace(doc.Find(".err").First().Text()); msg != "" {
		return nil, x.upstreamErr(msg)
	}
	return nil, x.parseErr("download link not found")
}
