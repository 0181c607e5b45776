package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/musicals/internal/db"
	"github.com/vbonduro/musicals/internal/domain"
	"github.com/vbonduro/musicals/internal/store"
)

func newTestService(t *testing.T) *CatalogueService {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return NewCatalogueService(store.NewInstrumentStore(d), store.NewContactStore(d), slog.Default())
}

var harmonium = domain.InstrumentFields{
	Name:  "Scale-changer Harmonium",
	Price: "22000",
	Desc:  "3.5 octave, double reed",
	Image: "https://example.com/harmonium.jpg",
}

func TestCatalogueServiceCreateInstrument(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	in := harmonium
	in.Name = "  Scale-changer Harmonium  "
	inst, err := svc.CreateInstrument(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, harmonium, inst.Fields())

	list, err := svc.ListInstruments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCatalogueServiceCreateInstrument_MissingFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	blanks := []func(f *domain.InstrumentFields){
		func(f *domain.InstrumentFields) { f.Name = "" },
		func(f *domain.InstrumentFields) { f.Price = " " },
		func(f *domain.InstrumentFields) { f.Desc = "" },
		func(f *domain.InstrumentFields) { f.Image = "\t" },
	}
	for _, blank := range blanks {
		in := harmonium
		blank(&in)
		_, err := svc.CreateInstrument(ctx, in)
		assert.ErrorIs(t, err, ErrMissingFields)
	}

	list, err := svc.ListInstruments(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestValidateInstrumentPrice(t *testing.T) {
	for _, price := range []string{"15000", "149.99", "0"} {
		in := harmonium
		in.Price = price
		_, err := ValidateInstrument(in)
		assert.NoError(t, err, price)
	}
	for _, price := range []string{"fifteen", "12abc", "NaN", "Inf"} {
		in := harmonium
		in.Price = price
		_, err := ValidateInstrument(in)
		assert.ErrorIs(t, err, ErrInvalidPrice, price)
	}
}

func TestCatalogueServiceUpdateInstrument(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inst, err := svc.CreateInstrument(ctx, harmonium)
	require.NoError(t, err)

	changed := harmonium
	changed.Price = "21000"
	updated, err := svc.UpdateInstrument(ctx, inst.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, "21000", updated.Price)

	_, err = svc.UpdateInstrument(ctx, "missing", changed)
	assert.ErrorIs(t, err, store.ErrNotFound)

	changed.Desc = ""
	_, err = svc.UpdateInstrument(ctx, inst.ID, changed)
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestCatalogueServiceDeleteInstrument(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inst, err := svc.CreateInstrument(ctx, harmonium)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInstrument(ctx, inst.ID))

	got, err := svc.GetInstrument(ctx, inst.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, svc.DeleteInstrument(ctx, inst.ID), store.ErrNotFound)
}

func TestCatalogueServiceSubmitContact(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	c, err := svc.SubmitContact(ctx, "Ravi", "ravi@example.com", "Is the sitar still available?", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.UserID)

	_, err = svc.SubmitContact(ctx, "Ravi", "", "hello", "")
	assert.ErrorIs(t, err, ErrMissingFields)
}

// failingInstruments returns errFailing from every call.
type failingInstruments struct{}

var errFailing = errors.New("backend unavailable")

func (failingInstruments) Create(context.Context, domain.InstrumentFields) (*domain.Instrument, error) {
	return nil, errFailing
}
func (failingInstruments) GetByID(context.Context, string) (*domain.Instrument, error) {
	return nil, errFailing
}
func (failingInstruments) List(context.Context) ([]*domain.Instrument, error) { return nil, errFailing }
func (failingInstruments) Update(context.Context, string, domain.InstrumentFields) error {
	return errFailing
}
func (failingInstruments) Delete(context.Context, string) error { return errFailing }

func TestCatalogueServicePropagatesStoreErrors(t *testing.T) {
	svc := NewCatalogueService(failingInstruments{}, nil, slog.Default())
	ctx := context.Background()

	_, err := svc.ListInstruments(ctx)
	assert.ErrorIs(t, err, errFailing)
	_, err = svc.CreateInstrument(ctx, harmonium)
	assert.ErrorIs(t, err, errFailing)
	_, err = svc.UpdateInstrument(ctx, "id", harmonium)
	assert.ErrorIs(t, err, errFailing)
	assert.ErrorIs(t, svc.DeleteInstrument(ctx, "id"), errFailing)
}
