package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL COLLATE NOCASE,
	password_hash TEXT,
	avatar TEXT,
	role TEXT NOT NULL DEFAULT 'student',
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS user_keys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	alg TEXT NOT NULL,
	public_key TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_user_keys_unique ON user_keys(alg, public_key);

CREATE TABLE IF NOT EXISTS auth_challenges (
	challenge TEXT PRIMARY KEY,
	alg TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_tokens (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`,
	// Migration 2: comments. Timestamps are unix milliseconds.
	`
CREATE TABLE IF NOT EXISTS comments (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	scope TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	images TEXT NOT NULL DEFAULT '[]',
	parent_id TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_entity ON comments(scope, entity_id);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

const commentColumns = `id, scope, entity_id, user_id, content, images, parent_id, created_at, updated_at`

// CreateComment inserts c, filling in ID and timestamps when unset.
func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	ref := c.Entity()
	if ref.IsZero() {
		return errors.New("comment has no parent entity")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.CreatedAt = c.CreatedAt.Truncate(time.Millisecond)
	c.UpdatedAt = c.CreatedAt
	if c.Images == nil {
		c.Images = []string{}
	}
	images, err := json.Marshal(c.Images)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO comments (id, scope, entity_id, user_id, content, images, parent_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.ID, string(ref.Scope), ref.ID, c.Author.ID, c.Content, string(images), nullIfEmpty(c.ParentID()), c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli())
	return err
}

func (s *Store) GetComment(ctx context.Context, id string) (model.Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	return scanComment(row)
}

func (s *Store) ListComments(ctx context.Context, ref model.EntityRef) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+commentColumns+`
FROM comments
WHERE scope = ? AND entity_id = ?
ORDER BY parent_id IS NOT NULL,
	CASE WHEN parent_id IS NULL THEN -seq ELSE seq END
`, string(ref.Scope), ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// UpdateComment replaces the content of comment id. The stored updated_at
// always moves forward, so an edited comment reads as edited even when the
// clock did not advance.
func (s *Store) UpdateComment(ctx context.Context, id, content string, updatedAt time.Time) (model.Comment, error) {
	cur, err := s.GetComment(ctx, id)
	if err != nil {
		return model.Comment{}, err
	}
	ms := updatedAt.UnixMilli()
	if floor := cur.UpdatedAt.UnixMilli() + 1; ms < floor {
		ms = floor
	}
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`, content, ms, id)
	if err != nil {
		return model.Comment{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Comment{}, store.ErrNotFound
	}
	return s.GetComment(ctx, id)
}

// DeleteComment removes only the comment itself. Replies keep their
// parent_id and become orphans.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Role == model.RoleUnknown {
		u.Role = model.RoleStudent
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, name, email, password_hash, avatar, role, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, u.ID, u.Name, strings.TrimSpace(u.Email), nullIfEmpty(u.PasswordHash), nullIfEmpty(u.Avatar), u.Role.String(), u.CreatedAt.Unix())
	if isUniqueViolation(err) {
		return store.ErrDuplicateEmail
	}
	return err
}

const userColumns = `id, name, email, password_hash, avatar, role, created_at`

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	return scanUser(row)
}

func (s *Store) AddUserKey(ctx context.Context, key *model.UserKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO user_keys (user_id, alg, public_key, created_at)
VALUES (?, ?, ?, ?)
`, key.UserID, key.Alg, key.PublicKey, key.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return err
	}
	key.ID, err = res.LastInsertId()
	return err
}

func (s *Store) FindUserKey(ctx context.Context, alg, publicKey string) (model.UserKey, model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT k.id, k.user_id, k.alg, k.public_key, k.created_at,
	u.id, u.name, u.email, u.password_hash, u.avatar, u.role, u.created_at
FROM user_keys k
JOIN users u ON u.id = k.user_id
WHERE k.alg = ? AND k.public_key = ?
LIMIT 1
`, alg, publicKey)
	var k model.UserKey
	var created int64
	var u userRow
	if err := row.Scan(&k.ID, &k.UserID, &k.Alg, &k.PublicKey, &created,
		&u.id, &u.name, &u.email, &u.passwordHash, &u.avatar, &u.role, &u.created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserKey{}, model.User{}, store.ErrNotFound
		}
		return model.UserKey{}, model.User{}, err
	}
	k.CreatedAt = time.Unix(created, 0)
	return k, u.user(), nil
}

func (s *Store) CreateChallenge(ctx context.Context, c model.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO auth_challenges (challenge, alg, expires_at, created_at)
VALUES (?, ?, ?, ?)
`, c.Challenge, c.Alg, c.ExpiresAt.Unix(), time.Now().Unix())
	return err
}

func (s *Store) ConsumeChallenge(ctx context.Context, challenge string) (model.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT challenge, alg, expires_at
FROM auth_challenges
WHERE challenge = ?
`, challenge)
	var c model.Challenge
	var expires int64
	if err := row.Scan(&c.Challenge, &c.Alg, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Challenge{}, store.ErrNotFound
		}
		return model.Challenge{}, err
	}
	c.ExpiresAt = time.Unix(expires, 0)
	_, _ = s.db.ExecContext(ctx, `DELETE FROM auth_challenges WHERE challenge = ?`, challenge)
	return c, nil
}

func (s *Store) CreateToken(ctx context.Context, token model.Token) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO auth_tokens (token, user_id, expires_at, created_at)
VALUES (?, ?, ?, ?)
`, token.Token, token.UserID, token.ExpiresAt.Unix(), time.Now().Unix())
	return err
}

func (s *Store) GetToken(ctx context.Context, token string) (model.Token, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, user_id, expires_at
FROM auth_tokens
WHERE token = ?
`, token)
	var t model.Token
	var expires int64
	if err := row.Scan(&t.Token, &t.UserID, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, store.ErrNotFound
		}
		return model.Token{}, err
	}
	t.ExpiresAt = time.Unix(expires, 0)
	return t, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanComment(row scanner) (model.Comment, error) {
	var c model.Comment
	var scope, entityID, userID, images string
	var parent sql.NullString
	var created, updated int64
	if err := row.Scan(&c.ID, &scope, &entityID, &userID, &c.Content, &images, &parent, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Comment{}, store.ErrNotFound
		}
		return model.Comment{}, err
	}
	c.SetEntity(model.EntityRef{Scope: model.Scope(scope), ID: entityID})
	c.Author = model.RefID(userID)
	if err := json.Unmarshal([]byte(images), &c.Images); err != nil {
		return model.Comment{}, fmt.Errorf("decode images of %s: %w", c.ID, err)
	}
	if c.Images == nil {
		c.Images = []string{}
	}
	if parent.Valid {
		p := parent.String
		c.ParentComment = &p
	}
	c.CreatedAt = time.UnixMilli(created)
	c.UpdatedAt = time.UnixMilli(updated)
	return c, nil
}

type userRow struct {
	id, name, email    string
	passwordHash, role sql.NullString
	avatar             sql.NullString
	created            int64
}

func (r userRow) user() model.User {
	return model.User{
		ID:           r.id,
		Name:         r.name,
		Email:        r.email,
		PasswordHash: r.passwordHash.String,
		Avatar:       r.avatar.String,
		Role:         model.ParseRole(r.role.String),
		CreatedAt:    time.Unix(r.created, 0),
	}
}

func scanUser(row scanner) (model.User, error) {
	var r userRow
	if err := row.Scan(&r.id, &r.name, &r.email, &r.passwordHash, &r.avatar, &r.role, &r.created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	return r.user(), nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
