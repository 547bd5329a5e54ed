// Package session implements opaque-token sessions backed by Postgres, with
// echo middleware guarding user and admin routes.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avicare/avicare/internal/platform/db"
)

// CookieName is the cookie carrying the session token.
const CookieName = "avicare_session"

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Session is one authenticated browser session. Exactly one of UserPhone or
// AdminID is set.
type Session struct {
	Token     string     `db:"token" json:"-"`
	UserPhone *string    `db:"user_phone" json:"user_phone,omitempty"`
	AdminID   *uuid.UUID `db:"admin_id" json:"admin_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
}

// IsAdmin reports whether the session belongs to an admin account.
func (s *Session) IsAdmin() bool { return s.AdminID != nil }

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// NewToken returns a fresh 256-bit random session token in hex.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// PGStore is the Postgres implementation of Store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) conn(ctx context.Context) db.Queryable {
	if q := db.ConnFromContext(ctx); q != nil {
		return q
	}
	return s.pool
}

func (s *PGStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO sessions (token, user_phone, admin_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.Token, sess.UserPhone, sess.AdminID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, token string) (*Session, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT token, user_phone, admin_id, created_at, expires_at
		FROM sessions WHERE token = $1`, token)

	var sess Session
	if err := row.Scan(&sess.Token, &sess.UserPhone, &sess.AdminID, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		return nil, ErrExpired
	}
	return &sess, nil
}

func (s *PGStore) Delete(ctx context.Context, token string) error {
	_, err := s.conn(ctx).Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
