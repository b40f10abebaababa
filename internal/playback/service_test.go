package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/catalog"
)

// memLinkStore is an in-memory Store for service tests.
type memLinkStore struct {
	mu     sync.Mutex
	links  []Link
	nextID int64
}

func (m *memLinkStore) FindLinks(_ context.Context, animeID string, episode int) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Link
	for _, l := range m.links {
		if l.AnimeID == animeID && l.Episode == episode {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLinkStore) ListLinks(_ context.Context, animeID string) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Link
	for _, l := range m.links {
		if l.AnimeID == animeID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLinkStore) DeleteLinks(_ context.Context, animeID string, episode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.links[:0]
	for _, l := range m.links {
		if !(l.AnimeID == animeID && l.Episode == episode) {
			kept = append(kept, l)
		}
	}
	m.links = kept
	return nil
}

func (m *memLinkStore) InsertLink(_ context.Context, link Link) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	link.ID = m.nextID
	if link.Quality == "" {
		link.Quality = "default"
	}
	link.ResolvedAt = time.Now().UTC()
	m.links = append(m.links, link)
	return &link, nil
}

// memCatalog fulfils the catalog.Store contract with a fixed record set.
type memCatalog struct {
	records map[string]catalog.Record
}

func (m *memCatalog) FindByID(_ context.Context, id string) (*catalog.Record, error) {
	if rec, ok := m.records[id]; ok {
		return &rec, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *memCatalog) FindByExternalID(context.Context, string, string) (*catalog.Record, error) {
	return nil, catalog.ErrNotFound
}
func (m *memCatalog) SearchByTitle(context.Context, string, int) ([]catalog.Record, error) {
	return nil, nil
}
func (m *memCatalog) ListByRating(context.Context, int, int) ([]catalog.Record, int, error) {
	return nil, 0, nil
}
func (m *memCatalog) Count(context.Context) (int, error) { return 0, nil }
func (m *memCatalog) Upsert(_ context.Context, rec catalog.Record) (*catalog.Record, error) {
	return &rec, nil
}
func (m *memCatalog) ListGenres(context.Context) ([]string, error) { return nil, nil }

// fakeResolver returns a canned candidate or error and counts lookups.
type fakeResolver struct {
	name      string
	candidate *Candidate
	err       error
	mu        sync.Mutex
	calls     int
}

func (f *fakeResolver) Name() string { return f.name }

func (f *fakeResolver) FindVideo(_ context.Context, title string, episode int) (*Candidate, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.candidate, f.err
}

func (f *fakeResolver) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestCatalog() *memCatalog {
	return &memCatalog{records: map[string]catalog.Record{
		"a1": {ID: "a1", Title: "Naruto"},
	}}
}

func TestResolveEpisode_AsksEveryBackend(t *testing.T) {
	store := &memLinkStore{}
	kodik := &fakeResolver{name: "kodik", candidate: &Candidate{URL: "https://kodik.cc/ep1.m3u8", Quality: "720p", IsAdaptive: true}}
	sibnet := &fakeResolver{name: "sibnet", candidate: &Candidate{URL: "https://video.sibnet.ru/ep1.mp4", Quality: "480p"}}
	svc := NewService(store, newTestCatalog(), []Resolver{kodik, sibnet}, zerolog.Nop())

	links, err := svc.ResolveEpisode(context.Background(), "a1", 1)
	if err != nil {
		t.Fatalf("ResolveEpisode() error = %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}

	backends := map[string]bool{}
	for _, l := range links {
		backends[l.Backend] = true
		if l.ID == 0 {
			t.Errorf("link %q has no id after insert", l.Backend)
		}
	}
	if !backends["kodik"] || !backends["sibnet"] {
		t.Errorf("backends = %v, want both kodik and sibnet", backends)
	}
}

func TestResolveEpisode_CacheHitSkipsBackends(t *testing.T) {
	store := &memLinkStore{}
	store.InsertLink(context.Background(), Link{AnimeID: "a1", Episode: 1, Backend: "kodik", URL: "https://kodik.cc/ep1.m3u8"})

	resolver := &fakeResolver{name: "kodik", candidate: &Candidate{URL: "https://kodik.cc/new.m3u8"}}
	svc := NewService(store, newTestCatalog(), []Resolver{resolver}, zerolog.Nop())

	links, err := svc.ResolveEpisode(context.Background(), "a1", 1)
	if err != nil {
		t.Fatalf("ResolveEpisode() error = %v", err)
	}
	if len(links) != 1 || links[0].URL != "https://kodik.cc/ep1.m3u8" {
		t.Errorf("links = %+v, want the cached row", links)
	}
	if resolver.lookups() != 0 {
		t.Errorf("resolver was asked %d times on a cache hit, want 0", resolver.lookups())
	}
}

func TestResolveEpisode_UnknownTitle(t *testing.T) {
	svc := NewService(&memLinkStore{}, newTestCatalog(), nil, zerolog.Nop())

	_, err := svc.ResolveEpisode(context.Background(), "nope", 1)
	if !errors.Is(err, ErrTitleNotFound) {
		t.Fatalf("ResolveEpisode() error = %v, want ErrTitleNotFound", err)
	}
}

func TestResolveEpisode_FailedBackendContributesNothing(t *testing.T) {
	store := &memLinkStore{}
	healthy := &fakeResolver{name: "kodik", candidate: &Candidate{URL: "https://kodik.cc/ep1.m3u8", Quality: "720p"}}
	down := &fakeResolver{name: "sibnet", err: errors.New("upstream down")}
	svc := NewService(store, newTestCatalog(), []Resolver{healthy, down}, zerolog.Nop())

	links, err := svc.ResolveEpisode(context.Background(), "a1", 1)
	if err != nil {
		t.Fatalf("ResolveEpisode() error = %v", err)
	}
	if len(links) != 1 || links[0].Backend != "kodik" {
		t.Errorf("links = %+v, want only the kodik link", links)
	}
}

// hangingResolver blocks until the caller's context is done, then reports
// the context error.
type hangingResolver struct {
	name string
}

func (h *hangingResolver) Name() string { return h.name }

func (h *hangingResolver) FindVideo(ctx context.Context, _ string, _ int) (*Candidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveEpisode_CancellationAbortsResolution(t *testing.T) {
	store := &memLinkStore{}
	hanging := &hangingResolver{name: "kodik"}
	svc := NewService(store, newTestCatalog(), []Resolver{hanging}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.ResolveEpisode(ctx, "a1", 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ResolveEpisode() error = %v, want context.DeadlineExceeded", err)
	}
	links, _ := store.FindLinks(context.Background(), "a1", 1)
	if len(links) != 0 {
		t.Errorf("got %d persisted links after cancellation, want 0", len(links))
	}
}

func TestResolveEpisode_EmptyResultIsValid(t *testing.T) {
	dry := &fakeResolver{name: "kodik"} // nil candidate, nil error
	svc := NewService(&memLinkStore{}, newTestCatalog(), []Resolver{dry}, zerolog.Nop())

	links, err := svc.ResolveEpisode(context.Background(), "a1", 1)
	if err != nil {
		t.Fatalf("ResolveEpisode() error = %v", err)
	}
	if len(links) != 0 {
		t.Errorf("got %d links, want 0", len(links))
	}
}

func TestRefreshEpisode_DiscardsCacheFirst(t *testing.T) {
	store := &memLinkStore{}
	store.InsertLink(context.Background(), Link{AnimeID: "a1", Episode: 1, Backend: "kodik", URL: "https://kodik.cc/stale.m3u8"})

	resolver := &fakeResolver{name: "kodik", candidate: &Candidate{URL: "https://kodik.cc/fresh.m3u8", Quality: "720p"}}
	svc := NewService(store, newTestCatalog(), []Resolver{resolver}, zerolog.Nop())

	links, err := svc.RefreshEpisode(context.Background(), "a1", 1)
	if err != nil {
		t.Fatalf("RefreshEpisode() error = %v", err)
	}
	if len(links) != 1 || links[0].URL != "https://kodik.cc/fresh.m3u8" {
		t.Errorf("links = %+v, want only the fresh link", links)
	}
	if resolver.lookups() != 1 {
		t.Errorf("resolver asked %d times, want 1", resolver.lookups())
	}

	remaining, _ := store.FindLinks(context.Background(), "a1", 1)
	if len(remaining) != 1 {
		t.Errorf("store holds %d links after refresh, want 1", len(remaining))
	}
}

func TestListEpisodeLinks(t *testing.T) {
	store := &memLinkStore{}
	store.InsertLink(context.Background(), Link{AnimeID: "a1", Episode: 1, Backend: "kodik", URL: "u1"})
	store.InsertLink(context.Background(), Link{AnimeID: "a1", Episode: 2, Backend: "kodik", URL: "u2"})
	store.InsertLink(context.Background(), Link{AnimeID: "other", Episode: 1, Backend: "kodik", URL: "u3"})

	svc := NewService(store, newTestCatalog(), nil, zerolog.Nop())

	links, err := svc.ListEpisodeLinks(context.Background(), "a1")
	if err != nil {
		t.Fatalf("ListEpisodeLinks() error = %v", err)
	}
	if len(links) != 2 {
		t.Errorf("got %d links, want 2", len(links))
	}
}
