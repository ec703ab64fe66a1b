// Package postgres is an accesshub.CredentialStore backed by PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/accesshub"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements accesshub.CredentialStore and
// accesshub.PasswordHashUpdater.
type Store struct {
	db  DB
	now func() time.Time
}

var (
	_ accesshub.CredentialStore     = (*Store)(nil)
	_ accesshub.PasswordHashUpdater = (*Store)(nil)
)

// New creates a PostgreSQL-backed credential store.
func New(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

const selectUser = `
		SELECT id, email, name, password_hash, created_at
		FROM users`

func (s *Store) FindByEmail(ctx context.Context, email string) (accesshub.UserRecord, error) {
	return s.scanUser(ctx, selectUser+`
		WHERE lower(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) FindByID(ctx context.Context, userID string) (accesshub.UserRecord, error) {
	return s.scanUser(ctx, selectUser+`
		WHERE id = $1`, userID)
}

// Create inserts a new user. A unique violation on id or email maps to
// accesshub.ErrUserExists.
func (s *Store) Create(ctx context.Context, nu accesshub.NewUser) (accesshub.UserRecord, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	rec := accesshub.UserRecord{
		UserID:       nu.UserID,
		Email:        strings.ToLower(strings.TrimSpace(nu.Email)),
		Name:         nu.Name,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    now,
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query,
		rec.UserID,
		rec.Email,
		rec.Name,
		rec.PasswordHash,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return accesshub.UserRecord{}, accesshub.ErrUserExists
		}
		return accesshub.UserRecord{}, fmt.Errorf("insert user: %w", err)
	}

	return rec, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = $2
		WHERE id = $3`

	ct, err := s.db.Exec(ctx, query, hash, s.now().UTC().Truncate(time.Microsecond), userID)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return accesshub.ErrUserNotFound
	}
	return nil
}

func (s *Store) scanUser(ctx context.Context, query string, args ...any) (accesshub.UserRecord, error) {
	var u accesshub.UserRecord

	err := s.db.QueryRow(ctx, query, args...).Scan(
		&u.UserID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accesshub.UserRecord{}, accesshub.ErrUserNotFound
		}
		return accesshub.UserRecord{}, fmt.Errorf("scan user: %w", err)
	}

	return u, nil
}

// isUniqueViolation checks for SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "23505")
}
