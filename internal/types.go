package internal

import (
	"math"
	"time"
)

// Status is the final state of a resolution.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusUnsupported Status = "unsupported"
	StatusTimeout     Status = "timeout"
	StatusError       Status = "error"
)

// ResolutionRequest is a single URL to resolve. Timeout is clamped to
// [1s, MaxTimeout] and MaxRetries to [0, MaxRetries].
type ResolutionRequest struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	UseCache   bool
	Params     map[string]string
}

// ResolveOptions is handed to a Resolver for one resolution.
type ResolveOptions struct {
	Retries  int
	UseCache bool
	Params   map[string]string
}

// Outcome is the response for one URL. Type and Data are set only on success.
type Outcome struct {
	URL            string                 `json:"url"`
	Status         Status                 `json:"status"`
	Type           string                 `json:"type,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Message        string                 `json:"message,omitempty"`
	ProcessingTime float64                `json:"processing_time"`
}

// BatchOutcome is the response for a batch. Results are index-aligned with the input.
type BatchOutcome struct {
	Count               int       `json:"count"`
	Results             []Outcome `json:"results"`
	TotalProcessingTime float64   `json:"total_processing_time"`
	SuccessCount        int       `json:"success_count"`
	ErrorCount          int       `json:"error_count"`
}

// DirectLinks is the flattened list of downloadable URLs found in a result.
type DirectLinks struct {
	URL            string   `json:"url"`
	DirectLinks    []string `json:"direct_links"`
	Count          int      `json:"count"`
	ProcessingTime float64  `json:"processing_time"`
}

// Result kinds
const (
	KindFile   = "file"
	KindFolder = "folder"
	KindDirect = "direct"
	KindLinks  = "links"
)

// Result is what a provider extracts from one URL.
type Result struct {
	Provider  string
	Kind      string
	DirectURL string
	Filename  string
	Size      int64
	SizeText  string
	Links     []string
	Extra     map[string]interface{}
	Children  []ChildResult
}

// ChildResult is one entry of a folder or pack.
type ChildResult struct {
	URL    string
	Result *Result
	Err    error
}

// Payload maps a Result into a JSON-compatible tree. Only nil, bool,
// float64, int64, string, []interface{} and map[string]interface{} appear in it.
func (r *Result) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"provider": r.Provider,
	}
	if r.DirectURL != "" {
		p["direct_url"] = r.DirectURL
	}
	if r.Filename != "" {
		p["file_name"] = r.Filename
	}
	if r.Size > 0 {
		p["size_bytes"] = r.Size
	}
	if r.SizeText != "" {
		p["size"] = r.SizeText
	}
	if len(r.Links) > 0 {
		links := make([]interface{}, len(r.Links))
		for i, l := range r.Links {
			links[i] = l
		}
		p["links"] = links
	}
	for k, v := range r.Extra {
		if _, taken := p[k]; !taken {
			p[k] = normalizeValue(v)
		}
	}
	if len(r.Children) > 0 {
		files := make([]interface{}, 0, len(r.Children))
		var failed []interface{}
		for _, c := range r.Children {
			if c.Err != nil {
				failed = append(failed, map[string]interface{}{
					"url":   c.URL,
					"error": c.Err.Error(),
				})
				continue
			}
			if c.Result != nil {
				child := c.Result.Payload()
				child["url"] = c.URL
				files = append(files, child)
			}
		}
		p["files"] = files
		p["total_files"] = int64(len(r.Children))
		if len(failed) > 0 {
			p["failed"] = failed
		}
	}
	return p
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, float64, int64, string:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return nil
	}
}

// Seconds returns d in seconds rounded to three decimals.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
