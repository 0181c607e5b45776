package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/musicals/internal/domain"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user. It returns ErrDuplicate if the email is taken,
// compared case-insensitively.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)
	`, id, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", email, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getOne(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getOne(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ResetStore holds single-use password reset tokens.
type ResetStore struct {
	db *sql.DB
}

func NewResetStore(db *sql.DB) *ResetStore {
	return &ResetStore{db: db}
}

func (s *ResetStore) Create(ctx context.Context, userID string, expiresAt time.Time) (*domain.PasswordReset, error) {
	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)
	`, token, userID, expiresAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create password reset: %w", err)
	}

	return s.Get(ctx, token)
}

// Get returns (nil, nil) for an unknown token.
func (s *ResetStore) Get(ctx context.Context, token string) (*domain.PasswordReset, error) {
	r := &domain.PasswordReset{}
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, used, created_at FROM password_resets WHERE token = ?
	`, token).Scan(&r.Token, &r.UserID, &r.ExpiresAt, &r.Used, &r.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get password reset: %w", err)
	}

	return r, nil
}

// Redeem consumes the token and sets the owning user's password hash in one
// transaction. A token that is unknown or already used yields ErrNotFound, so
// two concurrent redemptions cannot both succeed. If the password update
// fails the token stays unused.
func (s *ResetStore) Redeem(ctx context.Context, token, passwordHash string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin password reset: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE password_resets SET used = 1 WHERE token = ? AND used = 0
	`, token)
	if err != nil {
		return fmt.Errorf("failed to mark password reset used: %w", err)
	}
	if err = requireAffected(result, "password reset"); err != nil {
		return err
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE users SET password_hash = ?
		WHERE id = (SELECT user_id FROM password_resets WHERE token = ?)
	`, passwordHash, token)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err = requireAffected(result, "user"); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit password reset: %w", err)
	}
	return nil
}
