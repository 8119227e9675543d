package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"truelink/internal"
)

func TestUptobox(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantURL   string
		wantStage internal.Stage
		contains  string
	}{
		{
			name: "ready",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"statusCode":0,"data":{"dlLink":"https://www1.uptobox.example/dl/abc"}}`)
			},
			wantURL: "https://www1.uptobox.example/dl/abc",
		},
		{
			name: "waiting_token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("waitingToken") == "wt-1" {
					fmt.Fprint(w, `{"statusCode":0,"data":{"dlLink":"https://www1.uptobox.example/dl/after-wait"}}`)
					return
				}
				fmt.Fprint(w, `{"statusCode":16,"message":"Waiting needed","data":{"waiting":30,"waitingToken":"wt-1"}}`)
			},
			wantURL: "https://www1.uptobox.example/dl/after-wait",
		},
		{
			name: "rate_limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"statusCode":39,"message":"You need to wait","data":{"waiting":120}}`)
			},
			wantStage: internal.StageUpstreamLogic,
			contains:  "rate limited",
		},
		{
			name: "other_status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"statusCode":7,"message":"Invalid parameter"}`)
			},
			wantStage: internal.StageUpstreamLogic,
			contains:  "Invalid parameter",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			u := NewUptobox("")
			u.api = server.URL + "/api/link"
			u.maxWait = 10 * time.Millisecond

			res, err := u.Resolve(context.Background(), testSession(), "https://uptobox.com/abc123xyz")
			if tt.wantURL == "" {
				f := wantFailure(t, err, tt.wantStage, tt.contains)
				if tt.name == "rate_limited" && f.RetryAfter != 120 {
					t.Errorf("RetryAfter = %d, want 120", f.RetryAfter)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if res.DirectURL != tt.wantURL {
				t.Errorf("DirectURL = %q, want %q", res.DirectURL, tt.wantURL)
			}
		})
	}
}

func TestUptobox_WaitBoundedByDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"statusCode":16,"data":{"waiting":45,"waitingToken":"wt"}}`)
	}))
	defer server.Close()

	u := NewUptobox("tok")
	u.api = server.URL
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := u.Resolve(ctx, testSession(), "https://uptobox.com/abc123xyz")
	wantFailure(t, err, internal.StageUpstreamLogic, "exceeds request deadline")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Resolve waited %v past the deadline", elapsed)
	}
}

func TestPixeldrain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/file/abc/info":
			fmt.Fprint(w, `{"success":true,"name":"a.zip","size":42}`)
		case "/api/list/lst":
			fmt.Fprint(w, `{"success":true,"title":"album","file_count":3}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"success":false,"message":"not_found"}`)
		}
	}))
	defer server.Close()

	p := NewPixeldrain()
	p.api = server.URL + "/api"

	res, err := p.Resolve(context.Background(), testSession(), "https://pixeldrain.com/u/abc")
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if res.DirectURL != server.URL+"/api/file/abc?download" || res.Filename != "a.zip" || res.Size != 42 {
		t.Errorf("file result = %+v", res)
	}

	res, err = p.Resolve(context.Background(), testSession(), "https://pixeldrain.com/l/lst")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Kind != internal.KindFolder || res.DirectURL != server.URL+"/api/list/lst/zip?download" {
		t.Errorf("list result = %+v", res)
	}

	_, err = p.Resolve(context.Background(), testSession(), "https://pixeldrain.com/u/missing")
	wantFailure(t, err, internal.StageUpstreamLogic, "not_found")
}

func TestOnedrive(t *testing.T) {
	if got := shareToken("https://1drv.ms/u/s!abc"); !strings.HasPrefix(got, "u!") || strings.ContainsAny(got, "=/+") {
		t.Errorf("shareToken() = %q", got)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if strings.Contains(r.URL.Path, "private") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Location", "https://public.dm.files.example/file.bin")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	o := NewOnedrive()
	o.api = server.URL
	res, err := o.Resolve(context.Background(), testSession(), "https://1drv.ms/u/s!abc?e=1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://public.dm.files.example/file.bin" {
		t.Errorf("DirectURL = %q", res.DirectURL)
	}

	o.api = server.URL + "/private"
	_, err = o.Resolve(context.Background(), testSession(), "https://1drv.ms/u/s!abc")
	wantFailure(t, err, internal.StageUpstreamLogic, "not publicly downloadable")
}

func TestYandex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("public_key"), "gone") {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"DiskNotFoundError","description":"Resource not found."}`)
			return
		}
		fmt.Fprint(w, `{"href":"https://downloader.disk.yandex.example/disk/abc","method":"GET"}`)
	}))
	defer server.Close()

	y := NewYandex()
	y.api = server.URL
	res, err := y.Resolve(context.Background(), testSession(), "https://disk.yandex.com/d/abc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://downloader.disk.yandex.example/disk/abc" {
		t.Errorf("DirectURL = %q", res.DirectURL)
	}

	_, err = y.Resolve(context.Background(), testSession(), "https://disk.yandex.com/d/gone")
	wantFailure(t, err, internal.StageUpstreamLogic, "Resource not found.")
}

func TestLinkvertise(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://thebypasser.com/" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if strings.Contains(r.URL.Query().Get("url"), "bad") {
			fmt.Fprint(w, `{"success":false,"message":"unsupported link"}`)
			return
		}
		fmt.Fprint(w, `{"success":true,"result":"https://target.example/page"}`)
	}))
	defer server.Close()

	l := NewLinkvertise()
	l.api = server.URL
	res, err := l.Resolve(context.Background(), testSession(), "https://linkvertise.com/123/good")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://target.example/page" || res.Kind != internal.KindDirect {
		t.Errorf("result = %+v", res)
	}

	_, err = l.Resolve(context.Background(), testSession(), "https://linkvertise.com/123/bad")
	wantFailure(t, err, internal.StageUpstreamLogic, "unsupported link")
}

func TestFembed_LastSourceWins(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/f/vid1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>$.post('/api/source/vid1', {})</script>`)
	})
	mux.HandleFunc("/api/source/vid1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success":true,"data":[{"file":"%[1]s/redir/480","label":"480p"},{"file":"%[1]s/redir/720","label":"720p"}]}`, server.URL)
	})
	mux.HandleFunc("/redir/", func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimPrefix(r.URL.Path, "/redir/")
		w.Header().Set("Location", "https://cdn.fembed.example/"+q+".mp4")
		w.WriteHeader(http.StatusFound)
	})

	f := NewFembed()
	f.apiHost = server.URL
	res, err := f.Resolve(context.Background(), testSession(), server.URL+"/v/vid1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://cdn.fembed.example/720.mp4" {
		t.Errorf("DirectURL = %q", res.DirectURL)
	}
	qualities, _ := res.Extra["qualities"].(map[string]interface{})
	if qualities["480p"] != "https://cdn.fembed.example/480.mp4" {
		t.Errorf("qualities = %v", res.Extra["qualities"])
	}
}

func TestSbembed_DirectLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/e/abc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a onclick="download_video('abc','n','h1')">Normal</a><a onclick="download_video('abc','h','h2')">High</a>`)
	})
	mux.HandleFunc("/dl", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("op") != "download_orig" || q.Get("id") != "abc" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `<a href="/home">Home</a><a href="https://cdn.sb.example/%s.mp4">Direct Download Link</a>`, q.Get("mode"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewSbembed()
	s.dlBase = server.URL
	res, err := s.Resolve(context.Background(), testSession(), server.URL+"/e/abc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://cdn.sb.example/h.mp4" {
		t.Errorf("DirectURL = %q, want the last entry", res.DirectURL)
	}
}

func TestWetransfer(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		if r.URL.Path != "/api/v4/transfers/tid123/download" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"direct_link":"https://download.wetransfer.example/x"}`)
	}))
	defer server.Close()

	wt := NewWetransfer()
	wt.api = server.URL + "/api/v4"
	res, err := wt.Resolve(context.Background(), testSession(), "https://wetransfer.com/downloads/tid123/hash456")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://download.wetransfer.example/x" {
		t.Errorf("DirectURL = %q", res.DirectURL)
	}
	if !strings.Contains(body, `"security_hash":"hash456"`) {
		t.Errorf("request body = %s", body)
	}
}
