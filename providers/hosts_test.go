package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"truelink/internal"
)

func TestXFileSharing_UniqueExpiryLink(t *testing.T) {
	var gotOp, gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.ParseForm()
		gotOp, gotID = r.PostForm.Get("op"), r.PostForm.Get("id")
		fmt.Fprint(w, `<html><body><a id="uniqueExpirylink" href="https://cdn.example.com/d/abc/file.zip">Download</a></body></html>`)
	}))
	defer server.Close()

	res, err := NewHxfile().Resolve(context.Background(), testSession(), server.URL+"/abc123/file.zip.html")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://cdn.example.com/d/abc/file.zip" {
		t.Errorf("DirectURL = %q", res.DirectURL)
	}
	if res.Provider != "hxfile" || res.Kind != internal.KindFile {
		t.Errorf("Provider/Kind = %q/%q", res.Provider, res.Kind)
	}
	if gotOp != "download2" {
		t.Errorf("op = %q, want download2", gotOp)
	}
	if gotID != "abc123/file.zip.html" {
		t.Errorf("id = %q, want full path", gotID)
	}
}

func TestXFileSharing_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		stage    internal.Stage
		contains string
	}{
		{"host_error_box", `<div class="err">File was deleted</div>`, 200, internal.StageUpstreamLogic, "File was deleted"},
		{"no_link", `<html><body>nothing</body></html>`, 200, internal.StageParse, "download link not found"},
		{"http_error", `gone`, 404, internal.StageFetch, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewAkmfiles().Resolve(context.Background(), testSession(), server.URL+"/xyz")
			wantFailure(t, err, tt.stage, tt.contains)
		})
	}
}

func TestMediafire_DirectInput(t *testing.T) {
	link := "https://download1234.mediafire.com/abc/def/file.zip"
	res, err := NewMediafire().Resolve(context.Background(), testSession(), link)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != link {
		t.Errorf("DirectURL = %q, want input", res.DirectURL)
	}
}

func TestMediafire_DownloadButton(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a id="downloadButton" href="https://download42.mediafire.com/x/y/song.mp3">Download</a>`)
	}))
	defer server.Close()

	res, err := NewMediafire().Resolve(context.Background(), testSession(), server.URL+"/file/y/song.mp3")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://download42.mediafire.com/x/y/song.mp3" {
		t.Errorf("DirectURL = %q", res.DirectURL)
	}
}

func TestStreamtape_LastTokenWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<script>\n"+
			"document.getElementById('a').innerHTML = \"//streamtape.com/get_video?id=first&expires=1\";\n"+
			"document.getElementById('b').innerHTML = \"//streamtape.com/get_video?id=second&expires=2\";\n"+
			"</script>")
	}))
	defer server.Close()

	res, err := NewStreamtape().Resolve(context.Background(), testSession(), server.URL+"/v/abc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://streamtape.com/get_video?id=second&expires=2" {
		t.Errorf("DirectURL = %q", res.DirectURL)
	}
}

func TestFichier_InvalidLink(t *testing.T) {
	_, err := NewFichier().Resolve(context.Background(), testSession(), "https://example.com/?abc")
	wantFailure(t, err, internal.StageParse, "invalid 1fichier link")
}

func TestSolidfiles_ViewerOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>angular.module('sf').value('viewerOptions', {"downloadUrl":"https://s.example.com/d/1/a.mp4","nodeName":"a.mp4"});</script>`)
	}))
	defer server.Close()

	res, err := NewSolidfiles().Resolve(context.Background(), testSession(), server.URL+"/v/1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.DirectURL != "https://s.example.com/d/1/a.mp4" || res.Filename != "a.mp4" {
		t.Errorf("got %q %q", res.DirectURL, res.Filename)
	}
}

func TestKrakenfiles_TokenPost(t *testing.T) {
	var token string
	mux := http.NewServeMux()
	mux.HandleFunc("/view/abc/file.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="coin-name"><h5> movie.mkv </h5></div>
<form id="dl-form" action="/download/abc"><input id="dl-token" value="tok-1"></form>`)
	})
	mux.HandleFunc("/download/abc", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		token = r.PostForm.Get("token")
		fmt.Fprint(w, `{"status":"ok","url":"https://dl.krakenfiles.example/abc"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	res, err := NewKrakenfiles().Resolve(context.Background(), testSession(), server.URL+"/view/abc/file.html")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if token != "tok-1" {
		t.Errorf("posted token = %q", token)
	}
	if res.DirectURL != "https://dl.krakenfiles.example/abc" || res.Filename != "movie.mkv" {
		t.Errorf("got %q %q", res.DirectURL, res.Filename)
	}
}

func TestZippyshare_RebuildsLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>var a = 1;</script><script>
document.getElementById('dlbutton').href = "/d/AbCd/" + (5 % 3) + "/file.zip";
</script>`)
	}))
	defer server.Close()

	res, err := NewZippyshare().Resolve(context.Background(), testSession(), server.URL+"/v/AbCd/file.html")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.HasSuffix(res.DirectURL, "/d/AbCd/0/file.zip") {
		t.Errorf("DirectURL = %q", res.DirectURL)
	}
}
