package downloader

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"truelink/internal"
)

// CookieJar holds the cookies read from a Netscape cookie file.
type CookieJar struct {
	Cookies []*http.Cookie
}

// LoadCookieFile reads a Netscape-format cookie file as exported by browser
// extensions. Expired cookies are dropped.
func LoadCookieFile(path string) (*CookieJar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer file.Close()

	jar := &CookieJar{}
	now := time.Now()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// curl marks HttpOnly cookies with this prefix
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cookie, err := parseNetscapeCookieLine(line)
		if err != nil {
			return nil, fmt.Errorf("invalid cookie format at line %d: %w", lineNum, err)
		}
		cookie.HttpOnly = httpOnly
		if !cookie.Expires.IsZero() && cookie.Expires.Before(now) {
			internal.LogDebug("skipping expired cookie %s for %s", cookie.Name, cookie.Domain)
			continue
		}
		jar.Cookies = append(jar.Cookies, cookie)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cookie file: %w", err)
	}
	return jar, nil
}

// parseNetscapeCookieLine parses one line of the form
// domain	flag	path	secure	expiration	name	value
func parseNetscapeCookieLine(line string) (*http.Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}

	var expires time.Time
	if exp := fields[4]; exp != "0" {
		timestamp, err := strconv.ParseInt(exp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration timestamp: %w", err)
		}
		expires = time.Unix(timestamp, 0)
	}

	return &http.Cookie{
		Name:    fields[5],
		Value:   fields[6],
		Domain:  fields[0],
		Path:    fields[2],
		Expires: expires,
		Secure:  strings.EqualFold(fields[3], "TRUE"),
	}, nil
}

// Find returns the value of the first cookie named name whose domain
// contains host. An empty host matches any domain.
func (j *CookieJar) Find(name, host string) string {
	for _, c := range j.Cookies {
		if c.Name != name {
			continue
		}
		if host == "" || strings.Contains(strings.ToLower(c.Domain), host) {
			return c.Value
		}
	}
	return ""
}

// cryptHosts maps the label in a cookie's domain to the credential its
// crypt cookie fills.
var cryptHosts = []struct {
	label string
	field func(*internal.Credentials) *string
}{
	{"gdtot", func(c *internal.Credentials) *string { return &c.GDTOTCrypt }},
	{"hubdrive", func(c *internal.Credentials) *string { return &c.HubDriveCrypt }},
	{"katdrive", func(c *internal.Credentials) *string { return &c.KatDriveCrypt }},
	{"drivefire", func(c *internal.Credentials) *string { return &c.DriveFireCrypt }},
}

// ApplyTo fills empty credential fields from the jar. Values already set
// (from the config file or environment) win. It returns the names of the
// credentials it filled.
func (j *CookieJar) ApplyTo(creds *internal.Credentials) []string {
	var filled []string
	set := func(name string, dst *string, value string) {
		if *dst == "" && value != "" {
			*dst = value
			filled = append(filled, name)
		}
	}

	for _, h := range cryptHosts {
		set(strings.ToUpper(h.label)+"_CRYPT", h.field(creds), j.Find("crypt", h.label))
	}
	set("XSRF_TOKEN", &creds.XSRFToken, j.Find("XSRF-TOKEN", "sharer.pw"))
	set("LARAVEL_SESSION", &creds.LaravelSession, j.Find("laravel_session", "sharer.pw"))
	set("TERABOX_NDUS", &creds.TeraboxNDUS, j.Find("ndus", ""))
	return filled
}
