package utils

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"truelink/internal"
)

// URLInfo contains the parts of a page URL providers care about
type URLInfo struct {
	OriginalURL string
	Scheme      string
	Host        string
	Path        string
	Segments    []string
	Query       url.Values
}

// ParseURL validates that rawURL is an absolute http(s) URL and splits it.
// Failures are UnsupportedErrors because an unparsable URL can never be routed.
func ParseURL(rawURL string) (*URLInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, internal.NewUnsupportedError(rawURL, "invalid URL: empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, internal.NewUnsupportedError(rawURL, fmt.Sprintf("invalid URL: %v", err))
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, internal.NewUnsupportedError(rawURL, "invalid URL: scheme must be http or https")
	}
	if u.Hostname() == "" {
		return nil, internal.NewUnsupportedError(rawURL, "invalid URL: missing host")
	}
	if !plausibleHost(u.Hostname()) {
		return nil, internal.NewUnsupportedError(rawURL, fmt.Sprintf("invalid URL: %q is not a valid host", u.Hostname()))
	}

	return &URLInfo{
		OriginalURL: rawURL,
		Scheme:      scheme,
		Host:        strings.ToLower(u.Hostname()),
		Path:        u.Path,
		Segments:    splitPath(u.Path),
		Query:       u.Query(),
	}, nil
}

// plausibleHost accepts dotted names, IP literals and localhost.
func plausibleHost(host string) bool {
	if strings.EqualFold(host, "localhost") || net.ParseIP(host) != nil {
		return true
	}
	host = strings.Trim(host, ".")
	return strings.Contains(host, ".")
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Origin returns scheme://host[:port] of the URL.
func (i *URLInfo) Origin() string {
	u, err := url.Parse(i.OriginalURL)
	if err != nil {
		return i.Scheme + "://" + i.Host
	}
	return i.Scheme + "://" + u.Host
}

// LastSegment returns the final non-empty path segment.
func (i *URLInfo) LastSegment() string {
	if len(i.Segments) == 0 {
		return ""
	}
	return i.Segments[len(i.Segments)-1]
}

// Segment returns the path segment at index n, counting from the end when n < 0.
func (i *URLInfo) Segment(n int) string {
	if n < 0 {
		n += len(i.Segments)
	}
	if n < 0 || n >= len(i.Segments) {
		return ""
	}
	return i.Segments[n]
}

// Extension returns the lowercase file extension of the path, without the dot.
func (i *URLInfo) Extension() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(i.Path)), ".")
}

// HostMatches reports whether host equals domain or is a subdomain of it.
func HostMatches(host, domain string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// WithoutQuery returns rawURL with query and fragment removed.
func WithoutQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// ResolveReference joins ref against base. ref is returned unchanged on error.
func ResolveReference(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := b.Parse(ref)
	if err != nil {
		return ref
	}
	return r.String()
}
