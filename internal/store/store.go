// Package store provides SQLite persistence for the active session and the
// per-user rating records.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/gravcine/gravcine/internal/account"

	_ "modernc.org/sqlite"
)

// The session table holds at most one row, under this key.
const sessionKey = "session"

type Store struct {
	sqldb *sql.DB
	db    *bun.DB
}

type sessionRow struct {
	bun.BaseModel `bun:"table:session,alias:se"`

	Key               string `bun:"key,pk"`
	UserID            string `bun:"user_id,notnull"`
	Username          string `bun:"username,notnull"`
	Email             string `bun:"email,notnull"`
	ProfilePictureURL string `bun:"profile_picture_url"`
	FavoriteActorIDs  string `bun:"favorite_actor_ids,notnull"`
	UpdatedAt         string `bun:"updated_at,notnull"`
}

type RatingRow struct {
	bun.BaseModel `bun:"table:ratings,alias:r"`

	ID        int64  `bun:"id,pk,autoincrement"`
	UserID    string `bun:"user_id,notnull"`
	MediaID   int64  `bun:"media_id,notnull"`
	Rating    int64  `bun:"rating,notnull"`
	MediaType string `bun:"media_type,notnull"`
	UpdatedAt string `bun:"updated_at,notnull"`
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("DB_PATH is required")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	sqldb, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := sqldb.PingContext(ctx); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("ping db: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	if err := initSchema(ctx, sqldb); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("init schema: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{sqldb: sqldb, db: bdb}, nil
}

func (s *Store) Close() error { return s.sqldb.Close() }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS session (
	key TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	email TEXT NOT NULL,
	profile_picture_url TEXT,
	favorite_actor_ids TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ratings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	media_id INTEGER NOT NULL,
	rating INTEGER NOT NULL,
	media_type TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(user_id, media_id)
);
CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings(user_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *Store) SaveSession(ctx context.Context, sess *account.Session) error {
	ids, err := json.Marshal(sess.FavoriteActorIDs)
	if err != nil {
		return err
	}

	row := sessionRow{
		Key:               sessionKey,
		UserID:            sess.UserID,
		Username:          sess.Username,
		Email:             sess.Email,
		ProfilePictureURL: sess.ProfilePictureURL,
		FavoriteActorIDs:  string(ids),
		UpdatedAt:         now(),
	}

	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (key) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("username = EXCLUDED.username").
		Set("email = EXCLUDED.email").
		Set("profile_picture_url = EXCLUDED.profile_picture_url").
		Set("favorite_actor_ids = EXCLUDED.favorite_actor_ids").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// LoadSession returns the persisted session, or account.ErrNotFound when no
// session slot exists. A corrupt favorites payload invalidates the slot.
func (s *Store) LoadSession(ctx context.Context) (*account.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Where("key = ?", sessionKey).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal([]byte(row.FavoriteActorIDs), &ids); err != nil {
		if cerr := s.ClearSession(ctx); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, account.ErrNotFound
	}
	if ids == nil {
		ids = []int64{}
	}
	return &account.Session{
		UserID:            row.UserID,
		Username:          row.Username,
		Email:             row.Email,
		ProfilePictureURL: row.ProfilePictureURL,
		FavoriteActorIDs:  ids,
	}, nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Table("session").
		Where("key = ?", sessionKey).
		Exec(ctx)
	return err
}

// UpsertRating stores exactly one record per (user, media). The media type
// is written on first insert only and never re-typed afterwards.
func (s *Store) UpsertRating(ctx context.Context, userID string, mediaID int64, rating int, mediaType string) error {
	row := RatingRow{
		UserID:    userID,
		MediaID:   mediaID,
		Rating:    int64(rating),
		MediaType: mediaType,
		UpdatedAt: now(),
	}

	_, err := s.db.NewInsert().
		Model(&row).
		Column("user_id", "media_id", "rating", "media_type", "updated_at").
		On("CONFLICT (user_id, media_id) DO UPDATE").
		Set("rating = EXCLUDED.rating").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) DeleteRating(ctx context.Context, userID string, mediaID int64) error {
	_, err := s.db.NewDelete().
		Table("ratings").
		Where("user_id = ?", userID).
		Where("media_id = ?", mediaID).
		Exec(ctx)
	return err
}

func (s *Store) RatingsForUser(ctx context.Context, userID string) ([]RatingRow, error) {
	var out []RatingRow
	err := s.db.NewSelect().
		Model(&out).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ClearRatingsForUser(ctx context.Context, userID string) error {
	_, err := s.db.NewDelete().
		Table("ratings").
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
