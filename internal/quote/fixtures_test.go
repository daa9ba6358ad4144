package quote

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mydentalfly/quote-backend/internal/catalog"
	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

type fakePromos map[string]discounts.PromoCode

func (f fakePromos) ValidatePromoCode(_ context.Context, code string) (*discounts.PromoCode, error) {
	p, ok := f[code]
	if !ok {
		return nil, discounts.ErrInvalidPromoCode
	}
	return &p, nil
}

type fakeOffers struct {
	offers map[string]discounts.SpecialOffer
	// entered, when set, makes every fetch signal and then block until its
	// context is cancelled.
	entered chan struct{}
}

func (f *fakeOffers) GetSpecialOffer(ctx context.Context, id string) (*discounts.SpecialOffer, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o, ok := f.offers[id]
	if !ok {
		return nil, discounts.ErrNotFound
	}
	return &o, nil
}

type fakePackages map[string]discounts.Package

func (f fakePackages) GetPackage(_ context.Context, id string) (*discounts.Package, error) {
	p, ok := f[id]
	if !ok {
		return nil, discounts.ErrNotFound
	}
	return &p, nil
}

type memPersistence struct {
	mu      sync.Mutex
	saved   map[string]State
	saves   int
	saveErr error
	loadErr error
}

func newMemPersistence() *memPersistence {
	return &memPersistence{saved: map[string]State{}}
}

func (m *memPersistence) Load(_ context.Context, key string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	st, ok := m.saved[key]
	if !ok {
		return nil, nil
	}
	out := st.Clone()
	return &out, nil
}

func (m *memPersistence) Save(_ context.Context, key string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[key] = state.Clone()
	return nil
}

func (m *memPersistence) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, key)
	return nil
}

func (m *memPersistence) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memPersistence) Backend() string { return "test" }

var errBoom = errors.New("boom")

type fixture struct {
	offers  *fakeOffers
	persist *memPersistence
	deps    StoreDeps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	offers := &fakeOffers{offers: map[string]discounts.SpecialOffer{
		"implant-spring-20": {
			ID: "implant-spring-20", Title: "20% off implants", ClinicID: "istanbul",
			Mode: enums.OfferModePriceDiscount, DiscountType: enums.DiscountTypePercentage,
			DiscountValue: decimal.NewFromInt(20), ApplicableTreatmentID: "dental_implant_standard",
		},
		"free-whitening": {
			ID: "free-whitening", Title: "Free whitening", ClinicID: "antalya",
			Mode: enums.OfferModeBonusItem, BonusTreatmentID: "teeth_whitening",
		},
	}}
	resolver, err := discounts.NewResolver(
		fakePromos{
			"TEST10":      {Code: "TEST10", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10)},
			"FREECONSULT": {Code: "FREECONSULT", DiscountType: enums.DiscountTypeFixed, FixedValue: types.NewMoney(60, 75)},
		},
		offers,
		fakePackages{
			"implant-duo": {
				ID: "implant-duo", Title: "Implant duo", ClinicID: "istanbul",
				FixedPrice:         types.NewMoney(1500, 1920),
				IncludedTreatments: []string{"dental_implant_standard", "dental_implant_standard", "dental_consultation"},
			},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	persist := newMemPersistence()
	return &fixture{
		offers:  offers,
		persist: persist,
		deps: StoreDeps{
			Catalog:     catalog.Default(),
			Resolver:    resolver,
			Persistence: persist,
		},
	}
}

func (f *fixture) store(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("quote-1", f.deps, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

// must fails the test when a store operation returns an error.
func must(t *testing.T) func(State, error) State {
	t.Helper()
	return func(state State, err error) State {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return state
	}
}

func countBonus(items types.LineItems) int {
	n := 0
	for _, item := range items {
		if item.IsBonus {
			n++
		}
	}
	return n
}
