package resolver

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractDirectLinks(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{}
		want    []string
	}{
		{
			name:    "nil",
			payload: nil,
			want:    []string{},
		},
		{
			name: "priority_keys_before_others",
			payload: map[string]interface{}{
				"alpha":      "https://example.com/alpha",
				"link":       "https://example.com/link",
				"direct_url": "https://example.com/direct",
				"url":        "https://example.com/url",
			},
			want: []string{
				"https://example.com/url",
				"https://example.com/direct",
				"https://example.com/link",
				"https://example.com/alpha",
			},
		},
		{
			name: "files_before_direct_url_and_deduplicated",
			payload: map[string]interface{}{
				"direct_url": "https://example.com/a",
				"files": []interface{}{
					map[string]interface{}{"url": "https://example.com/a"},
					map[string]interface{}{"url": "https://example.com/b"},
				},
			},
			want: []string{"https://example.com/a", "https://example.com/b"},
		},
		{
			name: "rejects_non_http",
			payload: []interface{}{
				"ftp://example.com/file",
				"javascript:alert(1)",
				"https://example.com/?next=javascript:void(0)",
				"mailto:someone@example.com",
				"https://a",
				"http://x.io",
				"HTTPS://CDN.EXAMPLE/file.zip",
				"Http://cdn.example/file.zip",
				"   https://example.com/trimmed   ",
				42.0,
				true,
			},
			want: []string{"http://x.io", "https://example.com/trimmed"},
		},
		{
			name: "remaining_keys_sorted",
			payload: map[string]interface{}{
				"zeta": "https://example.com/z",
				"beta": "https://example.com/b",
				"mu":   "https://example.com/m",
			},
			want: []string{"https://example.com/b", "https://example.com/m", "https://example.com/z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDirectLinks(tt.payload)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractDirectLinks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractDirectLinks_Idempotent(t *testing.T) {
	payload := map[string]interface{}{
		"provider":   "gdtot",
		"direct_url": "https://drive.google.com/open?id=abc",
		"index_link": "https://index.example/0:abc",
		"extra": map[string]interface{}{
			"mirrors": []interface{}{"https://m1.example/f", "https://m2.example/f"},
			"thumb":   "https://t.example/1.jpg",
		},
	}
	first := ExtractDirectLinks(payload)
	for i := 0; i < 10; i++ {
		if got := ExtractDirectLinks(payload); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d = %v, first = %v", i, got, first)
		}
	}
	for _, l := range first {
		if !strings.HasPrefix(l, "http://") && !strings.HasPrefix(l, "https://") {
			t.Errorf("non-http link %q", l)
		}
	}
}

func TestExtractDirectLinks_DepthLimit(t *testing.T) {
	var payload interface{} = "https://example.com/deep"
	for i := 0; i < maxWalkDepth+5; i++ {
		payload = map[string]interface{}{"next": payload}
	}
	if got := ExtractDirectLinks(payload); len(got) != 0 {
		t.Errorf("links beyond depth %d were returned: %v", maxWalkDepth, got)
	}

	shallow := map[string]interface{}{"a": map[string]interface{}{"b": "https://example.com/shallow"}}
	if got := ExtractDirectLinks(shallow); len(got) != 1 {
		t.Errorf("shallow link missing: %v", got)
	}
}
