package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no catalog record exists for an id.
var ErrNotFound = errors.New("catalog record not found")

// Store is the canonical store contract consumed by the aggregator and
// the HTTP handlers.
type Store interface {
	FindByID(ctx context.Context, id string) (*Record, error)
	FindByExternalID(ctx context.Context, source, externalID string) (*Record, error)
	SearchByTitle(ctx context.Context, query string, limit int) ([]Record, error)
	ListByRating(ctx context.Context, page, pageSize int) ([]Record, int, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, rec Record) (*Record, error)
	ListGenres(ctx context.Context) ([]string, error)
}

// SQLStore is the SQLite-backed canonical store.
type SQLStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a new SQLite-backed catalog store.
func NewStore(db *sql.DB, logger zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger.With().Str("component", "catalog-store").Logger(),
	}
}

const recordColumns = `id, source, external_id, title, alternate_title, synopsis,
	kind, status, episode_count, episode_duration_min, cover_image_url, rating,
	release_date, last_synced_at`

// FindByID returns the record with the given internal id.
func (s *SQLStore) FindByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM anime WHERE id = ?`, id)
	return s.scanOne(ctx, row)
}

// FindByExternalID returns the record synced from (source, externalID).
func (s *SQLStore) FindByExternalID(ctx context.Context, source, externalID string) (*Record, error) {
	if externalID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM anime WHERE source = ? AND external_id = ?`,
		source, externalID)
	return s.scanOne(ctx, row)
}

// SearchByTitle returns records whose title or alternate title contains the
// query, case-insensitively, capped at limit.
func (s *SQLStore) SearchByTitle(ctx context.Context, query string, limit int) ([]Record, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM anime
		 WHERE title LIKE ? COLLATE NOCASE OR alternate_title LIKE ? COLLATE NOCASE
		 ORDER BY rating DESC
		 LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("title search failed: %w", err)
	}
	defer rows.Close()

	return s.scanAll(ctx, rows)
}

// ListByRating returns a page of records ordered by rating descending,
// along with the total record count.
func (s *SQLStore) ListByRating(ctx context.Context, page, pageSize int) ([]Record, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	total, err := s.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM anime
		 ORDER BY rating DESC, title ASC
		 LIMIT ? OFFSET ?`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("listing failed: %w", err)
	}
	defer rows.Close()

	records, err := s.scanAll(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Count returns the number of catalog records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anime`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return total, nil
}

// Upsert creates or updates a record by its (source, external id) identity,
// resolving genre names inside the same transaction. Missing required fields
// fall back to safe defaults on create. Syncing an unchanged record twice is
// a no-op beyond refreshing last_synced_at.
func (s *SQLStore) Upsert(ctx context.Context, rec Record) (*Record, error) {
	if rec.ExternalID == "" {
		return nil, fmt.Errorf("cannot upsert record without external id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// Required fields fall back on both paths so a sparse re-sync cannot
	// clobber the defaults applied on create.
	title := rec.Title
	if title == "" {
		title = "Unknown Title"
	}
	kind := rec.Kind
	if kind == "" {
		kind = KindUnknown
	}
	status := rec.Status
	if status == "" {
		status = StatusUnknown
	}

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM anime WHERE source = ? AND external_id = ?`,
		rec.Source, rec.ExternalID).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO anime (id, source, external_id, title, alternate_title,
				synopsis, kind, status, episode_count, episode_duration_min,
				cover_image_url, rating, release_date, last_synced_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, rec.Source, rec.ExternalID, title, rec.AlternateTitle,
			rec.Synopsis, string(kind), string(status), rec.Episodes,
			rec.EpisodeDuration, rec.CoverImageURL, rec.Rating,
			rec.ReleaseDate, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("upsert lookup failed: %w", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE anime SET title = ?, alternate_title = ?, synopsis = ?,
				kind = ?, status = ?, episode_count = ?, episode_duration_min = ?,
				cover_image_url = ?, rating = ?, release_date = ?, last_synced_at = ?
			 WHERE id = ?`,
			title, rec.AlternateTitle, rec.Synopsis, string(kind),
			string(status), rec.Episodes, rec.EpisodeDuration,
			rec.CoverImageURL, rec.Rating, rec.ReleaseDate, now, id)
		if err != nil {
			return nil, fmt.Errorf("failed to update record: %w", err)
		}
	}

	if err := s.connectGenres(ctx, tx, id, rec.Genres); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upsert: %w", err)
	}

	return s.FindByID(ctx, id)
}

// connectGenres resolves genre names to rows, creating unknown names,
// and links them to the record.
func (s *SQLStore) connectGenres(ctx context.Context, tx *sql.Tx, animeID string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO genres (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return fmt.Errorf("failed to upsert genre %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO anime_genres (anime_id, genre_id)
			 SELECT ?, id FROM genres WHERE name = ?
			 ON CONFLICT DO NOTHING`, animeID, name); err != nil {
			return fmt.Errorf("failed to connect genre %q: %w", name, err)
		}
	}
	return nil
}

// ListGenres returns all genre names sorted alphabetically.
func (s *SQLStore) ListGenres(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM genres ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLStore) scanOne(ctx context.Context, row *sql.Row) (*Record, error) {
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	if err := s.loadGenres(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLStore) scanAll(ctx context.Context, rows *sql.Rows) ([]Record, error) {
	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		if err := s.loadGenres(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func scanRecord(scan func(...interface{}) error) (*Record, error) {
	var rec Record
	var kind, status string
	var releaseDate sql.NullTime
	err := scan(&rec.ID, &rec.Source, &rec.ExternalID, &rec.Title,
		&rec.AlternateTitle, &rec.Synopsis, &kind, &status, &rec.Episodes,
		&rec.EpisodeDuration, &rec.CoverImageURL, &rec.Rating,
		&releaseDate, &rec.LastSyncedAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.Status = Status(status)
	if releaseDate.Valid {
		rec.ReleaseDate = &releaseDate.Time
	}
	return &rec, nil
}

func (s *SQLStore) loadGenres(ctx context.Context, rec *Record) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.name FROM genres g
		 JOIN anime_genres ag ON ag.genre_id = g.id
		 WHERE ag.anime_id = ?
		 ORDER BY g.name ASC`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to load genres: %w", err)
	}
	defer rows.Close()

	rec.Genres = nil
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		rec.Genres = append(rec.Genres, name)
	}
	return rows.Err()
}
