package providers

import (
	"context"
	"regexp"
	"strings"

	"truelink/internal"
	"truelink/utils"
)

var filepressFamily = familyPattern("filepress", "filebee")

// Filepress resolves filepress/filebee mirrors, which hand out both a
// Google Drive id and a Telegram bot deep link for the same file.
type Filepress struct{ base }

func NewFilepress() *Filepress {
	return &Filepress{base{name: "filepress", domains: []string{"filepress.store", "filebee.xyz"}}}
}

func (f *Filepress) Family() *regexp.Regexp { return filepressFamily }

func (f *Filepress) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := f.target(rawURL)
	if err != nil {
		return nil, err
	}
	id := info.LastSegment()
	if id == "" {
		return nil, f.parseErr("file id missing from URL")
	}
	origin := info.Origin()
	api := origin + "/api/file/downlaod/"
	opts := &utils.RequestOptions{Headers: map[string]string{"Referer": origin}}

	res := &internal.Result{Provider: f.name, Kind: internal.KindLinks, Extra: map[string]interface{}{}}
	var reasons []string

	drive, err := f.ok(sess.PostJSON(ctx, api, map[string]string{"id": id, "method": "publicDownlaod"}, opts))
	if err != nil {
		return nil, err
	}
	if data := drive.JSON().Get("data").String(); data != "" {
		link := "https://drive.google.com/uc?id=" + data
		res.DirectURL = link
		res.Links = append(res.Links, link)
		res.Extra["google_drive"] = link
	} else {
		reasons = append(reasons, "drive: "+statusText(drive))
	}

	tg, err := sess.PostJSON(ctx, api, map[string]string{"id": id, "method": "telegramDownload"}, opts)
	if err == nil {
		if data := tg.JSON().Get("data").String(); data != "" {
			link := "https://tghub.xyz/?start=" + data
			if res.DirectURL == "" {
				res.DirectURL = link
			}
			res.Links = append(res.Links, link)
			res.Extra["telegram"] = link
		} else {
			reasons = append(reasons, "telegram: "+statusText(tg))
		}
	} else {
		reasons = append(reasons, "telegram: "+err.Error())
	}

	if len(res.Links) == 0 {
		return nil, f.upstreamErr(strings.Join(reasons, "; "))
	}

	if meta, err := sess.Get(ctx, origin+"/api/file/get/"+id, opts); err == nil {
		doc := meta.JSON().Get("data")
		res.Filename = doc.Get("name").String()
		res.Size = doc.Get("size").Int()
	}
	return res, nil
}

func statusText(resp *utils.Response) string {
	if msg := resp.JSON().Get("statusText").String(); msg != "" {
		return msg
	}
	return "no data in response"
}
