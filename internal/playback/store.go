package playback

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Store is the persistence contract for playback links.
type Store interface {
	FindLinks(ctx context.Context, animeID string, episode int) ([]Link, error)
	ListLinks(ctx context.Context, animeID string) ([]Link, error)
	DeleteLinks(ctx context.Context, animeID string, episode int) error
	InsertLink(ctx context.Context, link Link) (*Link, error)
}

// SQLStore is the SQLite-backed playback link store.
type SQLStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a new SQLite-backed playback link store.
func NewStore(db *sql.DB, logger zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger.With().Str("component", "playback-store").Logger(),
	}
}

const linkColumns = `id, anime_id, episode, backend, url, quality, is_adaptive, resolved_at`

// FindLinks returns all links for one episode.
func (s *SQLStore) FindLinks(ctx context.Context, animeID string, episode int) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM playback_links
		 WHERE anime_id = ? AND episode = ?
		 ORDER BY backend ASC`, animeID, episode)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// ListLinks returns all links for a title ordered by episode.
func (s *SQLStore) ListLinks(ctx context.Context, animeID string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM playback_links
		 WHERE anime_id = ?
		 ORDER BY episode ASC, backend ASC`, animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// DeleteLinks removes all links for one episode.
func (s *SQLStore) DeleteLinks(ctx context.Context, animeID string, episode int) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM playback_links WHERE anime_id = ? AND episode = ?`,
		animeID, episode); err != nil {
		return fmt.Errorf("failed to delete links: %w", err)
	}
	return nil
}

// InsertLink stores one resolved link and returns it with its row id.
func (s *SQLStore) InsertLink(ctx context.Context, link Link) (*Link, error) {
	if link.ResolvedAt.IsZero() {
		link.ResolvedAt = time.Now().UTC()
	}
	if link.Quality == "" {
		link.Quality = "default"
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO playback_links (anime_id, episode, backend, url, quality, is_adaptive, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.AnimeID, link.Episode, link.Backend, link.URL, link.Quality,
		link.IsAdaptive, link.ResolvedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert link: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	link.ID = id
	return &link, nil
}

func scanLinks(rows *sql.Rows) ([]Link, error) {
	links := make([]Link, 0)
	for rows.Next() {
		var link Link
		if err := rows.Scan(&link.ID, &link.AnimeID, &link.Episode, &link.Backend,
			&link.URL, &link.Quality, &link.IsAdaptive, &link.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
