package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vbonduro/musicals/internal/domain"
)

// ContactStore holds the "contacts" collection. The site only writes to it.
type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

func (s *ContactStore) Create(ctx context.Context, name, email, message, userID string) (*domain.Contact, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, message, user_id) VALUES (?, ?, ?, ?, ?)
	`, id, name, email, message, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *ContactStore) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, message, user_id, created_at FROM contacts WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Message, &c.UserID, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return c, nil
}
