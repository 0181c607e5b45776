package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/vbonduro/musicals/internal/domain"
)

var (
	// ErrMissingFields is returned when a required form field is blank.
	ErrMissingFields = errors.New("please fill all fields")
	// ErrInvalidPrice is returned when the price is not a number.
	ErrInvalidPrice = errors.New("price must be a number")
)

// instrumentRepository is the subset of store.InstrumentStore that
// CatalogueService requires.
type instrumentRepository interface {
	Create(ctx context.Context, f domain.InstrumentFields) (*domain.Instrument, error)
	GetByID(ctx context.Context, id string) (*domain.Instrument, error)
	List(ctx context.Context) ([]*domain.Instrument, error)
	Update(ctx context.Context, id string, f domain.InstrumentFields) error
	Delete(ctx context.Context, id string) error
}

// contactRepository is the subset of store.ContactStore that CatalogueService
// requires.
type contactRepository interface {
	Create(ctx context.Context, name, email, message, userID string) (*domain.Contact, error)
}

type CatalogueService struct {
	instruments instrumentRepository
	contacts    contactRepository
	logger      *slog.Logger
}

func NewCatalogueService(instruments instrumentRepository, contacts contactRepository, logger *slog.Logger) *CatalogueService {
	return &CatalogueService{
		instruments: instruments,
		contacts:    contacts,
		logger:      logger,
	}
}

// ListInstruments reads the whole catalogue in one request.
func (s *CatalogueService) ListInstruments(ctx context.Context) ([]*domain.Instrument, error) {
	return s.instruments.List(ctx)
}

// GetInstrument returns (nil, nil) when the instrument does not exist.
func (s *CatalogueService) GetInstrument(ctx context.Context, id string) (*domain.Instrument, error) {
	return s.instruments.GetByID(ctx, id)
}

func (s *CatalogueService) CreateInstrument(ctx context.Context, f domain.InstrumentFields) (*domain.Instrument, error) {
	f, err := ValidateInstrument(f)
	if err != nil {
		return nil, err
	}

	inst, err := s.instruments.Create(ctx, f)
	if err != nil {
		return nil, err
	}
	s.logger.Info("instrument created", "instrument_id", inst.ID, "name", inst.Name)
	return inst, nil
}

// UpdateInstrument overwrites every field of the instrument. Concurrent edits
// are not detected; the last write wins.
func (s *CatalogueService) UpdateInstrument(ctx context.Context, id string, f domain.InstrumentFields) (*domain.Instrument, error) {
	f, err := ValidateInstrument(f)
	if err != nil {
		return nil, err
	}

	if err := s.instruments.Update(ctx, id, f); err != nil {
		return nil, fmt.Errorf("failed to update instrument: %w", err)
	}
	s.logger.Info("instrument updated", "instrument_id", id)
	return s.instruments.GetByID(ctx, id)
}

func (s *CatalogueService) DeleteInstrument(ctx context.Context, id string) error {
	if err := s.instruments.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete instrument: %w", err)
	}
	s.logger.Info("instrument deleted", "instrument_id", id)
	return nil
}

// SubmitContact stores a contact-form message. userID may be empty.
func (s *CatalogueService) SubmitContact(ctx context.Context, name, email, message, userID string) (*domain.Contact, error) {
	name, email, message = strings.TrimSpace(name), strings.TrimSpace(email), strings.TrimSpace(message)
	if name == "" || email == "" || message == "" {
		return nil, ErrMissingFields
	}

	c, err := s.contacts.Create(ctx, name, email, message, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("contact message received", "contact_id", c.ID)
	return c, nil
}

// ValidateInstrument trims every field and checks that all four are present
// and that the price parses as a number.
func ValidateInstrument(f domain.InstrumentFields) (domain.InstrumentFields, error) {
	f = domain.InstrumentFields{
		Name:  strings.TrimSpace(f.Name),
		Price: strings.TrimSpace(f.Price),
		Desc:  strings.TrimSpace(f.Desc),
		Image: strings.TrimSpace(f.Image),
	}
	if f.Name == "" || f.Price == "" || f.Desc == "" || f.Image == "" {
		return f, ErrMissingFields
	}
	if v, err := strconv.ParseFloat(f.Price, 64); err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return f, ErrInvalidPrice
	}
	return f, nil
}
