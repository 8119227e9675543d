package resolver

import (
	"sort"
	"strings"
)

// maxWalkDepth bounds recursion into nested payloads.
const maxWalkDepth = 15

// minLinkLength rejects bare scheme strings like "https://a".
const minLinkLength = 11

// priorityKeys are visited first, in this order, before the remaining keys.
var priorityKeys = []string{
	"direct_links", "files", "items", "url", "download_url", "direct_url",
	"links", "file_url", "download_link", "dl_link", "dl1", "dl2",
	"direct_link", "link", "index_link", "google_drive", "href",
}

var isPriorityKey = func() map[string]bool {
	m := make(map[string]bool, len(priorityKeys))
	for _, k := range priorityKeys {
		m[k] = true
	}
	return m
}()

var deniedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// ExtractDirectLinks walks a result payload depth-first and returns every
// http(s) link it holds, deduplicated in first-seen order. Key order is
// deterministic so the same payload always yields the same list.
func ExtractDirectLinks(payload interface{}) []string {
	w := &walker{seen: map[string]bool{}}
	w.walk(payload, 0)
	if w.links == nil {
		return []string{}
	}
	return w.links
}

type walker struct {
	seen  map[string]bool
	links []string
}

func (w *walker) walk(v interface{}, depth int) {
	if depth > maxWalkDepth {
		return
	}
	switch t := v.(type) {
	case string:
		w.add(t)
	case []string:
		for _, s := range t {
			w.add(s)
		}
	case []interface{}:
		for _, e := range t {
			w.walk(e, depth+1)
		}
	case map[string]interface{}:
		for _, k := range priorityKeys {
			if e, ok := t[k]; ok {
				w.walk(e, depth+1)
			}
		}
		rest := make([]string, 0, len(t))
		for k := range t {
			if !isPriorityKey[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		for _, k := range rest {
			w.walk(t[k], depth+1)
		}
	case map[string]string:
		m := make(map[string]interface{}, len(t))
		for k, s := range t {
			m[k] = s
		}
		w.walk(m, depth)
	}
}

func (w *walker) add(s string) {
	s = strings.TrimSpace(s)
	if !isLink(s) || w.seen[s] {
		return
	}
	w.seen[s] = true
	w.links = append(w.links, s)
}

func isLink(s string) bool {
	if len(s) < minLinkLength {
		return false
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	lower := strings.ToLower(s)
	for _, d := range deniedSchemes {
		if strings.Contains(lower, d) {
			return false
		}
	}
	return true
}
