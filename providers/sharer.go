package providers

import (
	"bytes"
	"context"
	"mime/multipart"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"truelink/internal"
	"truelink/utils"
)

var (
	sharerFamily = familyPattern("appdrive", "driveapp", "drivehub", "gdflix", "drivesharer",
		"drivebit", "drivelinks", "driveace", "drivepro", "driveseed", "appflix")
	sharerKey = regexp.MustCompile(`"key",\s+"(.*?)"`)
)

// packWorkers bounds concurrent child resolutions of an appflix pack.
const packWorkers = 4

// Sharer resolves the AppDrive-style sharer family (appdrive, gdflix,
// driveseed, ...). Pages expose a form key; posting it returns either a
// drive link or a page holding one. Appflix /pack/ pages expand into
// their child files.
type Sharer struct {
	base
	index indexFunc
}

func NewSharer(index indexFunc) *Sharer {
	return &Sharer{
		base: base{name: "sharer", domains: []string{
			"appdrive.info", "driveapp.in", "drivehub.in", "gdflix.top",
			"drivesharer.in", "drivebit.in", "drivelinks.in", "driveace.in",
			"drivepro.in", "driveseed.org", "appflix.in",
		}},
		index: index,
	}
}

func (s *Sharer) Family() *regexp.Regexp { return sharerFamily }

func (s *Sharer) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := s.target(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.Contains(info.Path, "/pack/") {
		return s.pack(ctx, sess, rawURL)
	}
	return s.file(ctx, sess, rawURL)
}

func (s *Sharer) file(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	info, err := s.target(rawURL)
	if err != nil {
		return nil, err
	}
	doc, resp, err := s.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}
	key := firstSubmatch(sharerKey, resp.Text())
	if key == "" {
		return nil, s.parseErr("form key not found")
	}
	if doc.Find("button#drc").Length() == 0 {
		return nil, s.upstreamErr("direct download not available for this file")
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	body, contentType, err := sharerForm(key)
	if err != nil {
		return nil, s.parseErr("building form").WithCause(err)
	}
	post, err := s.ok(sess.Post(ctx, rawURL, contentType, body, &utils.RequestOptions{
		Headers: map[string]string{"x-token": info.Host},
	}))
	if err != nil {
		return nil, err
	}
	data := post.JSON()
	link := data.Get("url").String()
	if link == "" {
		msg := data.Get("message").String()
		if msg == "" {
			msg = "no url in form response"
		}
		return nil, s.upstreamErr(msg)
	}

	if !isDriveLink(link) {
		hop, _, err := s.page(ctx, sess, link, nil)
		if err != nil {
			return nil, err
		}
		var drive string
		hop.Find("a[class*=btn]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if href, _ := a.Attr("href"); isDriveLink(href) {
				drive = href
				return false
			}
			return true
		})
		if drive == "" {
			return nil, s.upstreamErr("drive link not found after redirect")
		}
		link = drive
	}

	res := s.drive(link, s.index)
	res.Filename = title
	return res, nil
}

// sharerForm builds the browser-shaped multipart body the sharer sites expect.
func sharerForm(key string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary("----WebKitFormBoundary" + strings.ReplaceAll(uuid.NewString(), "-", "")); err != nil {
		return nil, "", err
	}
	for _, f := range [][2]string{{"action", "direct"}, {"key", key}, {"action_token", ""}} {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (s *Sharer) pack(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	doc, resp, err := s.page(ctx, sess, rawURL, nil)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var links []string
	doc.Find("a[href^='/file/']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := utils.ResolveReference(resp.URL.String(), href)
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	if len(links) == 0 {
		return nil, s.parseErr("pack contains no files")
	}

	children := make([]internal.ChildResult, len(links))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(packWorkers)
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			res, err := s.file(gctx, sess, link)
			children[i] = internal.ChildResult{URL: link, Result: res, Err: err}
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, s.fetchErr(err)
	}
	if failed == len(links) {
		return nil, s.upstreamErr("no file in pack could be resolved").WithCause(children[0].Err)
	}
	return &internal.Result{
		Provider: s.name,
		Kind:     internal.KindFolder,
		Filename: strings.TrimSpace(doc.Find("title").First().Text()),
		Children: children,
	}, nil
}
