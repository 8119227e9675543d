package providers

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"truelink/internal"
)

var driveIDPattern = regexp.MustCompile(`(?:/file/d/|/d/|[?&]id=|/folders/)([-\w]{10,})`)

// DriveFileID extracts the file id from a Google Drive link.
func DriveFileID(link string) string {
	return firstSubmatch(driveIDPattern, link)
}

// indexFunc maps a Google Drive link to a mirror on a configured index
// site. It returns "" when no index is configured or no id is found.
type indexFunc func(link string) string

func driveIndex(base string) indexFunc {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	return func(link string) string {
		if base == "" {
			return ""
		}
		id := DriveFileID(link)
		if id == "" {
			return ""
		}
		return base + "/0:" + id
	}
}

// isDriveLink reports whether link points at Google Drive.
func isDriveLink(link string) bool {
	return strings.Contains(link, "drive.google.com")
}

// drive builds a result for a Google Drive link, adding index_link when a
// drive index is configured.
func (b base) drive(link string, index indexFunc) *internal.Result {
	res := b.direct(link)
	res.Extra = map[string]interface{}{"google_drive": link}
	if index != nil {
		if idx := index(link); idx != "" {
			res.Extra["index_link"] = idx
		}
	}
	return res
}

// decodeB64 accepts standard or URL-safe base64, padded or not.
func decodeB64(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return string(b), nil
		}
	}
	return "", fmt.Errorf("invalid base64 %q", s)
}

// familyPattern builds a host-anchored regex matching any TLD and
// subdomain of the given second-level labels.
func familyPattern(labels ...string) *regexp.Regexp {
	return regexp.MustCompile(`^https?://(?:[^/?#]+\.)?(?:` + strings.Join(labels, "|") + `)\.[a-z]+(?::\d+)?(?:[/?#]|$)`)
}
