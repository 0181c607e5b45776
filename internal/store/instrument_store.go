package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vbonduro/musicals/internal/domain"
)

// InstrumentStore holds the "store" collection.
type InstrumentStore struct {
	db *sql.DB
}

func NewInstrumentStore(db *sql.DB) *InstrumentStore {
	return &InstrumentStore{db: db}
}

func (s *InstrumentStore) Create(ctx context.Context, f domain.InstrumentFields) (*domain.Instrument, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instruments (id, name, price, description, image) VALUES (?, ?, ?, ?, ?)
	`, id, f.Name, f.Price, f.Desc, f.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID returns (nil, nil) when no instrument has the given id.
func (s *InstrumentStore) GetByID(ctx context.Context, id string) (*domain.Instrument, error) {
	inst := &domain.Instrument{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, description, image, created_at, updated_at FROM instruments WHERE id = ?
	`, id).Scan(&inst.ID, &inst.Name, &inst.Price, &inst.Desc, &inst.Image, &inst.CreatedAt, &inst.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}

	return inst, nil
}

// List reads the whole collection in insertion order.
func (s *InstrumentStore) List(ctx context.Context) ([]*domain.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, description, image, created_at, updated_at FROM instruments ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer closeRows(rows)

	var instruments []*domain.Instrument
	for rows.Next() {
		inst := &domain.Instrument{}
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Price, &inst.Desc, &inst.Image, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	return instruments, nil
}

func (s *InstrumentStore) Update(ctx context.Context, id string, f domain.InstrumentFields) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE instruments SET name = ?, price = ?, description = ?, image = ?, updated_at = datetime('now')
		WHERE id = ?
	`, f.Name, f.Price, f.Desc, f.Image, id)
	if err != nil {
		return fmt.Errorf("failed to update instrument: %w", err)
	}

	return requireAffected(result, "instrument")
}

func (s *InstrumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM instruments WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete instrument: %w", err)
	}

	return requireAffected(result, "instrument")
}

func requireAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
