// Package session persists the signed-in user's bearer token and profile
// between CLI invocations.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/learnup/learnup/internal/model"

	_ "modernc.org/sqlite"
)

var ErrNoSession = errors.New("not logged in")

// Record is one signed-in session.
type Record struct {
	Token     string
	ExpiresAt time.Time
	User      model.Author
	BaseURL   string
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the session database at path, creating its
// directory when needed.
func Open(path string) (*Store, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	token TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	profile TEXT NOT NULL,
	base_url TEXT NOT NULL DEFAULT '',
	saved_at INTEGER NOT NULL
);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return err
	}
	for i := current; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("session migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, r Record) error {
	profile, err := json.Marshal(r.User)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO session (id, token, expires_at, profile, base_url, saved_at)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	token = excluded.token,
	expires_at = excluded.expires_at,
	profile = excluded.profile,
	base_url = excluded.base_url,
	saved_at = excluded.saved_at
`, r.Token, r.ExpiresAt.Unix(), string(profile), r.BaseURL, s.now().Unix())
	return err
}

// Load returns the stored session, expired or not.
func (s *Store) Load(ctx context.Context) (Record, error) {
	var r Record
	var expires int64
	var profile string
	err := s.db.QueryRowContext(ctx, `SELECT token, expires_at, profile, base_url FROM session WHERE id = 1`).
		Scan(&r.Token, &expires, &profile, &r.BaseURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNoSession
		}
		return Record{}, err
	}
	r.ExpiresAt = time.Unix(expires, 0)
	if err := json.Unmarshal([]byte(profile), &r.User); err != nil {
		return Record{}, fmt.Errorf("decode stored profile: %w", err)
	}
	return r, nil
}

// Token returns the stored bearer token, or "" when there is none or it
// has expired.
func (s *Store) Token(ctx context.Context) (string, error) {
	r, err := s.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !s.now().Before(r.ExpiresAt) {
		return "", nil
	}
	return r.Token, nil
}

// Profile returns the signed-in user's profile.
func (s *Store) Profile(ctx context.Context) (model.Author, error) {
	r, err := s.Load(ctx)
	if err != nil {
		return model.Author{}, err
	}
	return r.User, nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session`)
	return err
}
