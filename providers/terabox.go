package providers

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"truelink/internal"
	"truelink/utils"
)

// Share id formats: /s/1AbC123 and ...?surl=AbC123
var (
	teraboxSharePath = regexp.MustCompile(`/s/([a-zA-Z0-9_-]+)`)
	teraboxSurlParam = regexp.MustCompile(`[?&]surl=([a-zA-Z0-9_-]+)`)
)

var teraboxAPI1Keys = []string{"file_name", "sizebytes", "thumb", "link", "direct_link"}

// Terabox resolves Terabox shares through third-party APIs, falling back
// from the ndus-authenticated API to the anonymous one.
type Terabox struct {
	base
	ndus     string
	api1     string
	api2     string
	fallback *Fallback
}

func NewTerabox(ndus string) *Terabox {
	t := &Terabox{
		base: base{name: "terabox", domains: []string{
			"terabox.com", "terabox.app", "1024terabox.com", "teraboxapp.com",
			"4funbox.com", "mirrobox.com", "nephobox.com", "momerybox.com",
			"tibibox.com", "freeterabox.com", "teraboxlink.com", "terasharelink.com",
		}},
		ndus: ndus,
		api1: "https://nord.teraboxfast.com/",
		api2: "https://teradl1.tellycloudapi.workers.dev/api/api1",
	}
	t.fallback = &Fallback{
		Provider:       t.name,
		PerCallTimeout: DefaultPerCallTimeout,
		Sources: []Source{
			{Name: "api1", Build: t.buildAPI1, Validate: validateAPI1},
			{Name: "api2", Build: t.buildAPI2, Validate: validateAPI2},
		},
	}
	return t
}

// ShareID extracts the surl/share id from a Terabox URL.
func ShareID(rawURL string) string {
	if id := firstSubmatch(teraboxSurlParam, rawURL); id != "" {
		return id
	}
	return firstSubmatch(teraboxSharePath, rawURL)
}

func (t *Terabox) Resolve(ctx context.Context, sess *utils.Session, rawURL string) (*internal.Result, error) {
	return t.ResolveWithParams(ctx, sess, rawURL, nil)
}

// ResolveWithParams accepts an "ndus" parameter overriding the configured token.
func (t *Terabox) ResolveWithParams(ctx context.Context, sess *utils.Session, rawURL string, params map[string]string) (*internal.Result, error) {
	res, err := t.fallback.Resolve(ctx, sess, rawURL, params)
	if err != nil {
		return nil, err
	}
	if id := ShareID(rawURL); id != "" {
		res.Extra["share_id"] = id
	}
	return res, nil
}

func (t *Terabox) buildAPI1(target string, params map[string]string) (string, error) {
	ndus := params["ndus"]
	if ndus == "" {
		ndus = t.ndus
	}
	if ndus == "" {
		return "", errors.New("ndus credential missing")
	}
	return t.api1 + "?ndus=" + url.QueryEscape(ndus) + "&url=" + url.QueryEscape(target), nil
}

func (t *Terabox) buildAPI2(target string, _ map[string]string) (string, error) {
	return t.api2 + "?url=" + url.QueryEscape(target), nil
}

func validateAPI1(data gjson.Result) (*internal.Result, error) {
	var missing []string
	for _, k := range teraboxAPI1Keys {
		if !data.Get(k).Exists() {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.New("missing keys: " + strings.Join(missing, ", "))
	}

	direct := data.Get("direct_link").String()
	return &internal.Result{
		Kind:      internal.KindFile,
		DirectURL: direct,
		Filename:  data.Get("file_name").String(),
		Size:      data.Get("sizebytes").Int(),
		SizeText:  data.Get("size").String(),
		Links:     nonEmpty(direct, data.Get("link").String()),
		Extra: map[string]interface{}{
			"thumb": data.Get("thumb").String(),
			"link":  data.Get("link").String(),
		},
	}, nil
}

func validateAPI2(data gjson.Result) (*internal.Result, error) {
	if !data.Get("success").Bool() {
		if msg := data.Get("message").String(); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, errors.New("success flag not set")
	}
	meta := data.Get("metadata")
	if !meta.IsObject() {
		return nil, errors.New("metadata missing")
	}
	dl1, dl2 := data.Get("links.dl1").String(), data.Get("links.dl2").String()
	if dl1 == "" && dl2 == "" {
		return nil, errors.New("links missing")
	}

	links := nonEmpty(dl1, dl2)
	extra := map[string]interface{}{"thumb": meta.Get("thumb").String()}
	if dl1 != "" {
		extra["dl1"] = dl1
	}
	if dl2 != "" {
		extra["dl2"] = dl2
	}
	return &internal.Result{
		Kind:      internal.KindFile,
		DirectURL: links[0],
		Filename:  meta.Get("file_name").String(),
		Size:      meta.Get("sizebytes").Int(),
		SizeText:  meta.Get("size").String(),
		Links:     links,
		Extra:     extra,
	}, nil
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
