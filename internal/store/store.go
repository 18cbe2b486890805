// Package store persists credentials and cached AniList data in a local
// SQLite database, so the tracker works across restarts and, for list data,
// offline.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"anitrack/internal/anilist"
	"anitrack/internal/auth"
)

// Store wraps the SQLite database. It implements auth.CredentialStore and
// owns the persisted credential row exclusively.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS user_auth (
	user_id INTEGER PRIMARY KEY,
	access_token TEXT NOT NULL,
	refresh_token TEXT,
	expires_at TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cached_media (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	english_title TEXT,
	native_title TEXT,
	description TEXT,
	episodes INTEGER,
	duration INTEGER,
	genres TEXT,
	average_score REAL,
	cover_image TEXT,
	banner_image TEXT,
	status TEXT,
	format TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cached_list_entries (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL,
	media_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	score REAL,
	progress INTEGER,
	updated_at TEXT NOT NULL,
	FOREIGN KEY(media_id) REFERENCES cached_media(id),
	UNIQUE(user_id, media_id)
);
`

// Open opens (and if needed creates) the database at path and applies the
// schema. Pass ":memory:" for an ephemeral database in tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAuth upserts the credential row for cred.UserID.
func (s *Store) SaveAuth(ctx context.Context, cred auth.Credential) error {
	var expiresAt sql.NullString
	if !cred.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: cred.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}
	updatedAt := cred.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_auth (user_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		cred.UserID,
		cred.AccessToken,
		nullString(cred.RefreshToken),
		expiresAt,
		updatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save auth: %w", err)
	}
	return nil
}

// GetAuth returns the most recently updated credential, or nil when none is
// stored.
func (s *Store) GetAuth(ctx context.Context) (*auth.Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, refresh_token, expires_at, updated_at
		FROM user_auth
		ORDER BY updated_at DESC
		LIMIT 1`)

	var cred auth.Credential
	var refreshToken, expiresAt sql.NullString
	var updatedAt string
	err := row.Scan(&cred.UserID, &cred.AccessToken, &refreshToken, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth: %w", err)
	}

	cred.RefreshToken = refreshToken.String
	if expiresAt.Valid {
		t, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("get auth: parse expires_at: %w", err)
		}
		cred.ExpiresAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		cred.UpdatedAt = t
	}
	return &cred, nil
}

// ClearAuth removes all stored credentials.
func (s *Store) ClearAuth(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_auth`); err != nil {
		return fmt.Errorf("clear auth: %w", err)
	}
	return nil
}

// CacheMedia upserts a media record into the offline cache.
func (s *Store) CacheMedia(ctx context.Context, media anilist.Media) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cached_media (
			id, title, english_title, native_title, description,
			episodes, duration, genres, average_score,
			cover_image, banner_image, status, format, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		media.ID,
		media.Title.Preferred(),
		nullString(media.Title.English),
		nullString(media.Title.Native),
		nullString(media.Description),
		nullInt(media.Episodes),
		nullInt(media.Duration),
		nullString(strings.Join(media.Genres, ",")),
		nullFloat(media.AverageScore),
		nullString(coverURL(media.CoverImage)),
		nullString(media.BannerImage),
		nullString(media.Status),
		nullString(media.Format),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cache media %d: %w", media.ID, err)
	}
	return nil
}

// GetCachedMedia returns a cached media record, or nil when absent.
func (s *Store) GetCachedMedia(ctx context.Context, id int) (*anilist.Media, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, english_title, native_title, description,
			episodes, duration, genres, average_score,
			cover_image, banner_image, status, format
		FROM cached_media
		WHERE id = ?`, id)

	media, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached media %d: %w", id, err)
	}
	return media, nil
}

// SaveListEntry upserts a user's list entry into the offline cache,
// together with its media record when present.
func (s *Store) SaveListEntry(ctx context.Context, userID int, entry anilist.MediaListEntry) error {
	if entry.Media != nil {
		if err := s.CacheMedia(ctx, *entry.Media); err != nil {
			return err
		}
	}

	updatedAt := time.Unix(entry.UpdatedAt, 0)
	if entry.UpdatedAt == 0 {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cached_list_entries (id, user_id, media_id, status, score, progress, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		userID,
		entry.MediaID,
		entry.Status.String(),
		nullFloat(entry.Score),
		nullInt(entry.Progress),
		updatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save list entry %d: %w", entry.ID, err)
	}
	return nil
}

// UserList returns a user's cached list entries, newest first, optionally
// filtered by status. Entries are joined with their cached media records.
func (s *Store) UserList(ctx context.Context, userID int, status *anilist.MediaListStatus) ([]anilist.MediaListEntry, error) {
	query := `
		SELECT e.id, e.user_id, e.media_id, e.status, e.score, e.progress, e.updated_at,
			m.id, m.title, m.english_title, m.native_title, m.description,
			m.episodes, m.duration, m.genres, m.average_score,
			m.cover_image, m.banner_image, m.status, m.format
		FROM cached_list_entries e
		JOIN cached_media m ON e.media_id = m.id
		WHERE e.user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND e.status = ?`
		args = append(args, status.String())
	}
	query += ` ORDER BY e.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	defer rows.Close()

	var entries []anilist.MediaListEntry
	for rows.Next() {
		entry, err := scanListEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("user list: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	return entries, nil
}

// ClearCache empties the offline media and list caches. The credential row
// is untouched.
func (s *Store) ClearCache(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cached_list_entries`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cached_media`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*anilist.Media, error) {
	var media anilist.Media
	var english, native, description, genres, cover, banner, status, format sql.NullString
	var episodes, duration sql.NullInt64
	var score sql.NullFloat64

	err := row.Scan(&media.ID, &media.Title.Romaji, &english, &native, &description,
		&episodes, &duration, &genres, &score, &cover, &banner, &status, &format)
	if err != nil {
		return nil, err
	}

	media.Title.English = english.String
	media.Title.Native = native.String
	media.Description = description.String
	media.BannerImage = banner.String
	media.Status = status.String
	media.Format = format.String
	if episodes.Valid {
		v := int(episodes.Int64)
		media.Episodes = &v
	}
	if duration.Valid {
		v := int(duration.Int64)
		media.Duration = &v
	}
	if score.Valid {
		v := score.Float64
		media.AverageScore = &v
	}
	if genres.Valid && genres.String != "" {
		media.Genres = strings.Split(genres.String, ",")
	}
	if cover.Valid && cover.String != "" {
		media.CoverImage = &anilist.CoverImage{Large: cover.String}
	}
	return &media, nil
}

func scanListEntry(row rowScanner) (*anilist.MediaListEntry, error) {
	var entry anilist.MediaListEntry
	var media anilist.Media
	var userID int
	var entryStatus, entryUpdatedAt string
	var entryScore sql.NullFloat64
	var entryProgress sql.NullInt64
	var english, native, description, genres, cover, banner, mediaStatus, format sql.NullString
	var episodes, duration sql.NullInt64
	var avgScore sql.NullFloat64

	err := row.Scan(&entry.ID, &userID, &entry.MediaID, &entryStatus, &entryScore, &entryProgress, &entryUpdatedAt,
		&media.ID, &media.Title.Romaji, &english, &native, &description,
		&episodes, &duration, &genres, &avgScore, &cover, &banner, &mediaStatus, &format)
	if err != nil {
		return nil, err
	}

	status, err := anilist.ParseMediaListStatus(entryStatus)
	if err != nil {
		return nil, err
	}
	entry.Status = status
	if entryScore.Valid {
		v := entryScore.Float64
		entry.Score = &v
	}
	if entryProgress.Valid {
		v := int(entryProgress.Int64)
		entry.Progress = &v
	}
	if t, err := time.Parse(time.RFC3339, entryUpdatedAt); err == nil {
		entry.UpdatedAt = t.Unix()
	}

	media.Title.English = english.String
	media.Title.Native = native.String
	media.Description = description.String
	media.BannerImage = banner.String
	media.Status = mediaStatus.String
	media.Format = format.String
	if episodes.Valid {
		v := int(episodes.Int64)
		media.Episodes = &v
	}
	if duration.Valid {
		v := int(duration.Int64)
		media.Duration = &v
	}
	if avgScore.Valid {
		v := avgScore.Float64
		media.AverageScore = &v
	}
	if genres.Valid && genres.String != "" {
		media.Genres = strings.Split(genres.String, ",")
	}
	if cover.Valid && cover.String != "" {
		media.CoverImage = &anilist.CoverImage{Large: cover.String}
	}
	entry.Media = &media
	return &entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func coverURL(cover *anilist.CoverImage) string {
	if cover == nil {
		return ""
	}
	if cover.Large != "" {
		return cover.Large
	}
	return cover.Medium
}
