package sibnet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/config"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.SibnetConfig{
		BaseURL: serverURL,
		Timeout: 5,
	}, zerolog.Nop())
}

const searchPage = `<html><body>
	<div class="video-item">
		<a href="/video123"><span class="title">Naruto 3 серия</span></a>
	</div>
	<div class="video-item">
		<a href="/video456"><span class="title">Bleach 3 серия</span></a>
	</div>
</body></html>`

func TestFindVideo_DirectURL(t *testing.T) {
	var searchQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search.php":
			searchQuery = r.URL.Query().Get("str")
			w.Write([]byte(searchPage))
		case r.URL.Path == "/video123":
			w.Write([]byte(`<html><body><video><source src="/v/naruto-ep3.mp4"></video></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	candidate, err := newTestClient(server.URL).FindVideo(context.Background(), "Naruto", 3)
	if err != nil {
		t.Fatalf("FindVideo() error = %v", err)
	}
	if candidate == nil {
		t.Fatal("FindVideo() = nil, want a candidate")
	}
	if want := "Naruto 3 серия"; searchQuery != want {
		t.Errorf("search query = %q, want %q", searchQuery, want)
	}
	if candidate.URL != server.URL+"/v/naruto-ep3.mp4" {
		t.Errorf("URL = %q, want the direct stream URL", candidate.URL)
	}
	if candidate.Quality != "720p" {
		t.Errorf("Quality = %q", candidate.Quality)
	}
}

func TestFindVideo_FallsBackToPageURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search.php":
			w.Write([]byte(searchPage))
		case "/video123":
			// No player markup on the page.
			w.Write([]byte(`<html><body><p>Video unavailable</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	candidate, err := newTestClient(server.URL).FindVideo(context.Background(), "Naruto", 3)
	if err != nil {
		t.Fatalf("FindVideo() error = %v", err)
	}
	if candidate == nil {
		t.Fatal("FindVideo() = nil, want the page URL as fallback")
	}
	if candidate.URL != server.URL+"/video123" {
		t.Errorf("URL = %q, want the video page URL", candidate.URL)
	}
}

func TestFindVideo_SkipsNonMatchingTitles(t *testing.T) {
	var videoPagesHit []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search.php":
			w.Write([]byte(searchPage))
		default:
			videoPagesHit = append(videoPagesHit, r.URL.Path)
			w.Write([]byte(`<html><body></body></html>`))
		}
	}))
	defer server.Close()

	candidate, err := newTestClient(server.URL).FindVideo(context.Background(), "Bleach", 3)
	if err != nil {
		t.Fatalf("FindVideo() error = %v", err)
	}
	if candidate == nil {
		t.Fatal("FindVideo() = nil, want the Bleach entry")
	}
	if !strings.HasSuffix(candidate.URL, "/video456") {
		t.Errorf("URL = %q, want the second search entry", candidate.URL)
	}
	if len(videoPagesHit) != 1 || videoPagesHit[0] != "/video456" {
		t.Errorf("video pages hit = %v, want only /video456", videoPagesHit)
	}
}

func TestFindVideo_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Ничего не найдено</p></body></html>`))
	}))
	defer server.Close()

	candidate, err := newTestClient(server.URL).FindVideo(context.Background(), "Naruto", 3)
	if err != nil {
		t.Fatalf("FindVideo() error = %v", err)
	}
	if candidate != nil {
		t.Errorf("candidate = %+v, want nil for empty search results", candidate)
	}
}

func TestFindVideo_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).FindVideo(context.Background(), "Naruto", 3); err == nil {
		t.Fatal("FindVideo() error = nil, want error on blocked search")
	}
}

func TestAbsoluteURL(t *testing.T) {
	c := newTestClient("https://video.sibnet.ru")

	tests := []struct {
		in   string
		want string
	}{
		{"/video123", "https://video.sibnet.ru/video123"},
		{"https://cdn.sibnet.ru/v.mp4", "https://cdn.sibnet.ru/v.mp4"},
	}
	for _, tt := range tests {
		if got := c.absoluteURL(tt.in); got != tt.want {
			t.Errorf("absoluteURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}