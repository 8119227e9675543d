package resolver

import (
	"context"
	"time"

	"truelink/internal"
	"truelink/providers"
	"truelink/utils"
)

// directExtensions are file types that are already downloadable as-is.
var directExtensions = map[string]bool{
	"mp4": true, "mkv": true, "avi": true, "mov": true, "webm": true, "m4v": true,
	"mp3": true, "flac": true, "m4a": true, "wav": true, "ogg": true,
	"zip": true, "rar": true, "7z": true, "tar": true, "gz": true, "xz": true,
	"iso": true, "apk": true, "exe": true, "msi": true, "dmg": true,
	"pdf": true, "epub": true,
}

// Generic is the default Resolver: the dispatch table plus a passthrough
// for URLs that already point at a media or archive file.
type Generic struct {
	table  *Table
	client *utils.HTTPClient
}

// NewGeneric builds a resolver over the given scrapers.
func NewGeneric(client *utils.HTTPClient, scrapers ...providers.Scraper) (*Generic, error) {
	table, err := NewTable(scrapers...)
	if err != nil {
		return nil, err
	}
	return &Generic{table: table, client: client}, nil
}

// Table exposes the dispatch table.
func (g *Generic) Table() *Table {
	return g.table
}

func isDirectFile(rawURL string) bool {
	info, err := utils.ParseURL(rawURL)
	if err != nil {
		return false
	}
	return directExtensions[info.Extension()]
}

// IsSupported reports whether some scraper claims rawURL or it is already a
// direct file link.
func (g *Generic) IsSupported(rawURL string) bool {
	if _, err := g.table.Dispatch(rawURL); err == nil {
		return true
	}
	return isDirectFile(rawURL)
}

// SupportedDomains returns every literal domain in sorted order.
func (g *Generic) SupportedDomains() []string {
	return g.table.Domains()
}

// Resolve dispatches rawURL and runs the scraper with a fresh session.
func (g *Generic) Resolve(ctx context.Context, rawURL string, opts internal.ResolveOptions) (*internal.Result, error) {
	scraper, err := g.table.Dispatch(rawURL)
	if err != nil {
		if internal.IsUnsupported(err) && isDirectFile(rawURL) {
			return &internal.Result{
				Provider:  "direct",
				Kind:      internal.KindDirect,
				DirectURL: rawURL,
				Filename:  utils.FilenameFromURL(rawURL),
			}, nil
		}
		return nil, err
	}
	return g.run(ctx, scraper, rawURL, opts)
}

// Bypass runs the named scraper directly, skipping dispatch.
func (g *Generic) Bypass(ctx context.Context, name, rawURL string, opts internal.ResolveOptions) (*internal.Result, error) {
	scraper, ok := g.table.Lookup(name)
	if !ok {
		return nil, internal.NewUnsupportedError(rawURL, "unknown provider: "+name)
	}
	if _, err := utils.ParseURL(rawURL); err != nil {
		return nil, err
	}
	return g.run(ctx, scraper, rawURL, opts)
}

// Providers lists the scraper names usable with Bypass.
func (g *Generic) Providers() []string {
	return g.table.Names()
}

func (g *Generic) run(ctx context.Context, scraper providers.Scraper, rawURL string, opts internal.ResolveOptions) (*internal.Result, error) {
	sess := g.client.NewSession(opts.Retries)
	start := time.Now()

	var (
		res *internal.Result
		err error
	)
	if pr, ok := scraper.(providers.ParamResolver); ok && len(opts.Params) > 0 {
		res, err = pr.ResolveWithParams(ctx, sess, rawURL, opts.Params)
	} else {
		res, err = scraper.Resolve(ctx, sess, rawURL)
	}
	if err != nil {
		if f, ok := internal.AsScrapeFailure(err); ok && f.URL == "" {
			f.WithURL(rawURL)
		}
		internal.LogDebug("%s failed after %v: %v", scraper.Name(), time.Since(start), err)
		return nil, err
	}
	if res.Provider == "" {
		res.Provider = scraper.Name()
	}
	internal.LogDebug("%s resolved %s in %v", scraper.Name(), rawURL, time.Since(start))
	return res, nil
}
