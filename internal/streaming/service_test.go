package streaming

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/config"
)

// fakeUpstream records which sources were hit and answers per-source.
type fakeUpstream struct {
	mu       sync.Mutex
	hits     []string
	respond  map[string]string // source name -> JSON body
	statuses map[string]int    // source name -> HTTP status (default 200)
}

func (f *fakeUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Path shape: /anime/{source}/{rest...}
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 3)
		if len(parts) < 2 || parts[0] != "anime" {
			http.NotFound(w, r)
			return
		}
		src := parts[1]

		f.mu.Lock()
		f.hits = append(f.hits, src)
		body := f.respond[src]
		status, hasStatus := f.statuses[src]
		f.mu.Unlock()

		if hasStatus {
			w.WriteHeader(status)
			return
		}
		if body == "" {
			body = `{}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func (f *fakeUpstream) sourcesHit() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.hits))
	copy(out, f.hits)
	return out
}

func newTestService(t *testing.T, upstream *fakeUpstream) (*Service, *Registry, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	cfg := config.StreamingConfig{
		BaseURL:       server.URL,
		ListTimeout:   5,
		DetailTimeout: 5,
	}
	registry := NewRegistry([]config.SourceConfig{
		{Name: "gogoanime", Priority: 1, Enabled: true},
		{Name: "zoro", Priority: 2, Enabled: true},
		{Name: "animepahe", Priority: 3, Enabled: true},
	}, zerolog.Nop())

	return NewService(cfg, registry, zerolog.Nop()), registry, server
}

func TestService_Search_FirstSourceWins(t *testing.T) {
	upstream := &fakeUpstream{
		respond: map[string]string{
			"gogoanime": `{"results": [{"id": "naruto", "title": "Naruto"}]}`,
		},
	}
	svc, _, _ := newTestService(t, upstream)

	payload, err := svc.Search(context.Background(), "naruto", 1, "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if got := upstream.sourcesHit(); len(got) != 1 || got[0] != "gogoanime" {
		t.Errorf("sources hit = %v, want [gogoanime]", got)
	}
	if payload["source"] != "gogoanime" {
		t.Errorf("payload source = %v, want gogoanime", payload["source"])
	}
}

func TestService_Search_FallsThroughFailedSources(t *testing.T) {
	upstream := &fakeUpstream{
		respond: map[string]string{
			"zoro":      `{"error": "maintenance"}`, // unusable shape
			"animepahe": `{"results": []}`,
		},
		statuses: map[string]int{
			"gogoanime": http.StatusBadGateway,
		},
	}
	svc, registry, _ := newTestService(t, upstream)

	payload, err := svc.Search(context.Background(), "bleach", 1, "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if payload["source"] != "animepahe" {
		t.Errorf("payload source = %v, want animepahe", payload["source"])
	}

	want := []string{"gogoanime", "zoro", "animepahe"}
	if got := upstream.sourcesHit(); !equalStrings(got, want) {
		t.Errorf("sources hit = %v, want %v", got, want)
	}

	// Both failing sources were demoted below the one that answered.
	order := registry.OrderedNames("")
	if order[0] != "animepahe" {
		t.Errorf("registry order = %v, want animepahe first", order)
	}
}

func TestService_Search_AllSourcesExhausted(t *testing.T) {
	upstream := &fakeUpstream{
		statuses: map[string]int{
			"gogoanime": http.StatusInternalServerError,
			"zoro":      http.StatusInternalServerError,
			"animepahe": http.StatusInternalServerError,
		},
	}
	svc, _, _ := newTestService(t, upstream)

	_, err := svc.Search(context.Background(), "naruto", 1, "")
	if !errors.Is(err, ErrAllSourcesExhausted) {
		t.Fatalf("Search() error = %v, want ErrAllSourcesExhausted", err)
	}
	if !strings.Contains(err.Error(), "search/naruto") {
		t.Errorf("error %q should name the failing path", err)
	}
}

func TestService_Search_PreferredSourceTriedFirst(t *testing.T) {
	upstream := &fakeUpstream{
		respond: map[string]string{
			"animepahe": `{"results": []}`,
		},
	}
	svc, _, _ := newTestService(t, upstream)

	payload, err := svc.Search(context.Background(), "naruto", 1, "animepahe")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if payload["source"] != "animepahe" {
		t.Errorf("payload source = %v, want animepahe", payload["source"])
	}
	if got := upstream.sourcesHit(); len(got) != 1 || got[0] != "animepahe" {
		t.Errorf("sources hit = %v, want [animepahe]", got)
	}
}

func TestService_Info(t *testing.T) {
	upstream := &fakeUpstream{
		respond: map[string]string{
			"gogoanime": `{
				"id": "naruto",
				"title": "Naruto",
				"image": "https://cdn.example/naruto.jpg",
				"description": "Ninja boy",
				"genres": ["Action", "Adventure"],
				"status": "Completed",
				"totalEpisodes": 220,
				"episodes": [
					{"id": "naruto-episode-1", "number": 1, "title": "Enter: Naruto Uzumaki!"},
					{"id": "naruto-episode-2", "number": 2}
				]
			}`,
		},
	}
	svc, _, _ := newTestService(t, upstream)

	info, err := svc.Info(context.Background(), "naruto", "")
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}

	if info.Title != "Naruto" {
		t.Errorf("Title = %q, want Naruto", info.Title)
	}
	if info.TotalEpisodes != 220 {
		t.Errorf("TotalEpisodes = %d, want 220", info.TotalEpisodes)
	}
	if len(info.Genres) != 2 {
		t.Errorf("Genres = %v, want 2 entries", info.Genres)
	}
	if len(info.Episodes) != 2 {
		t.Fatalf("Episodes = %d entries, want 2", len(info.Episodes))
	}
	if info.Episodes[0].ID != "naruto-episode-1" || info.Episodes[0].Number != 1 {
		t.Errorf("episode 0 = %+v", info.Episodes[0])
	}
	if info.Source != "gogoanime" {
		t.Errorf("Source = %q, want gogoanime", info.Source)
	}
}

func TestService_EpisodeLinks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "sources key",
			body: `{"sources": [
				{"url": "https://cdn.example/ep1.m3u8", "quality": "1080p", "isM3U8": true},
				{"url": "https://cdn.example/ep1-720.m3u8", "quality": "720p", "isM3U8": true}
			]}`,
			want: 2,
		},
		{
			name: "quality defaults when absent",
			body: `{"sources": [{"url": "https://cdn.example/ep1.mp4"}]}`,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := &fakeUpstream{respond: map[string]string{"gogoanime": tt.body}}
			svc, _, _ := newTestService(t, upstream)

			links, err := svc.EpisodeLinks(context.Background(), "naruto-episode-1", "")
			if err != nil {
				t.Fatalf("EpisodeLinks() error = %v", err)
			}
			if len(links) != tt.want {
				t.Fatalf("got %d links, want %d", len(links), tt.want)
			}
			for _, l := range links {
				if l.URL == "" {
					t.Error("link has empty URL")
				}
				if l.Quality == "" {
					t.Error("link has empty quality")
				}
			}
		})
	}
}

func TestService_Genres_FallbackOnTotalFailure(t *testing.T) {
	upstream := &fakeUpstream{
		statuses: map[string]int{
			"gogoanime": http.StatusServiceUnavailable,
			"zoro":      http.StatusServiceUnavailable,
			"animepahe": http.StatusServiceUnavailable,
		},
	}
	svc, _, _ := newTestService(t, upstream)

	payload, err := svc.Genres(context.Background(), "")
	if err != nil {
		t.Fatalf("Genres() error = %v, want fallback instead", err)
	}
	genres, ok := payload["genres"].([]string)
	if !ok || len(genres) == 0 {
		t.Fatalf("payload genres = %v, want non-empty fallback list", payload["genres"])
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			w.Write([]byte(`{"results": []}`))
		}
	}))
	defer server.Close()

	registry := NewRegistry([]config.SourceConfig{
		{Name: "gogoanime", Priority: 1, Enabled: true},
	}, zerolog.Nop())
	client := NewClient(config.StreamingConfig{BaseURL: server.URL}, registry, zerolog.Nop())

	_, err := client.trySources(context.Background(), "popular", "", nil, 50*time.Millisecond)
	if !errors.Is(err, ErrAllSourcesExhausted) {
		t.Fatalf("trySources() error = %v, want ErrAllSourcesExhausted", err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
