package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mydentalfly/quote-backend/internal/catalog"
	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/internal/pricing"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// RemoveOptions controls removal of discount-owned line items.
type RemoveOptions struct {
	// ClearOwningDiscount clears the discount that injected a locked item,
	// removing all of its items.
	ClearOwningDiscount bool `json:"clearOwningDiscount"`
}

// StoreDeps are the collaborators of a Store.
type StoreDeps struct {
	Catalog     CatalogProvider
	Resolver    DiscountResolver
	Persistence Persistence
	Now         func() time.Time
}

// Store owns one quote. Mutations are serialized and each completes its
// recompute and persistence write before the next begins. Discount fetches
// run outside the lock; the most recent apply or clear wins.
type Store struct {
	key      string
	catalog  CatalogProvider
	resolver DiscountResolver
	persist  Persistence
	now      func() time.Time

	mu    sync.Mutex
	state State

	// retired is set under mu; a retired store rejects every mutation.
	retired atomic.Bool

	genMu      sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewStore builds a store for key starting from initial (nil for an empty quote).
func NewStore(key string, deps StoreDeps, initial *State) (*Store, error) {
	if key == "" {
		return nil, fmt.Errorf("quote key required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("discount resolver required")
	}
	if deps.Persistence == nil {
		return nil, fmt.Errorf("persistence required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	state := NewState(key)
	if initial != nil {
		state = initial.Clone()
		state.QuoteKey = key
		state.recompute()
	}
	return &Store{
		key:      key,
		catalog:  deps.Catalog,
		resolver: deps.Resolver,
		persist:  deps.Persistence,
		now:      now,
		state:    state,
	}, nil
}

// Key returns the quote key.
func (s *Store) Key() string { return s.key }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// AddTreatment appends a user line item for treatmentID.
func (s *Store) AddTreatment(ctx context.Context, treatmentID string, quantity int) (State, error) {
	if quantity < 1 {
		return s.Snapshot(), invalidQuantity(quantity)
	}
	treatment, err := s.catalog.GetTreatment(ctx, treatmentID)
	if err != nil {
		return s.Snapshot(), unknownTreatment(treatmentID, err)
	}

	item := newLineItem(treatment, quantity)
	return s.mutate(ctx, func(st *State) error {
		st.LineItems = append(st.LineItems, item)
		return nil
	})
}

// RemoveTreatment drops a line item. Locked items require
// opts.ClearOwningDiscount, which clears the owning discount entirely.
func (s *Store) RemoveTreatment(ctx context.Context, lineItemID uuid.UUID, opts RemoveOptions) (State, error) {
	snap := s.Snapshot()
	idx := snap.LineItems.Find(lineItemID)
	if idx < 0 {
		return snap, lineItemNotFound(lineItemID.String())
	}
	if snap.LineItems[idx].IsLocked {
		if !opts.ClearOwningDiscount {
			return snap, lineItemLocked(lineItemID.String())
		}
		gen := s.bump()
		return s.mutate(ctx, func(st *State) error {
			if !s.current(gen) {
				return superseded()
			}
			i := st.LineItems.Find(lineItemID)
			if i < 0 {
				return lineItemNotFound(lineItemID.String())
			}
			owner := st.LineItems[i].Owner
			if st.ActiveDiscount != nil && st.ActiveDiscount.Identity() == owner {
				st.clearDiscount()
			}
			if j := st.LineItems.Find(lineItemID); j >= 0 {
				st.LineItems = removeAt(st.LineItems, j)
			}
			return nil
		})
	}

	return s.mutate(ctx, func(st *State) error {
		i := st.LineItems.Find(lineItemID)
		if i < 0 {
			return lineItemNotFound(lineItemID.String())
		}
		if st.LineItems[i].IsLocked {
			return lineItemLocked(lineItemID.String())
		}
		st.LineItems = removeAt(st.LineItems, i)
		return nil
	})
}

// UpdateQuantity changes the quantity of a user line item.
func (s *Store) UpdateQuantity(ctx context.Context, lineItemID uuid.UUID, quantity int) (State, error) {
	if quantity < 1 {
		return s.Snapshot(), invalidQuantity(quantity)
	}
	return s.mutate(ctx, func(st *State) error {
		i := st.LineItems.Find(lineItemID)
		if i < 0 {
			return lineItemNotFound(lineItemID.String())
		}
		if st.LineItems[i].IsLocked {
			return lineItemLocked(lineItemID.String())
		}
		st.LineItems[i].Quantity = quantity
		return nil
	})
}

// ApplyPromo validates code and makes it the active discount.
func (s *Store) ApplyPromo(ctx context.Context, code string) (State, error) {
	return s.applyResolved(ctx, func(fetchCtx context.Context) (*discounts.Source, error) {
		return s.resolver.ResolvePromo(fetchCtx, code)
	})
}

// ApplyOffer resolves ref and makes the offer the active discount.
func (s *Store) ApplyOffer(ctx context.Context, ref discounts.OfferRef) (State, error) {
	return s.applyResolved(ctx, func(fetchCtx context.Context) (*discounts.Source, error) {
		return s.resolver.ResolveOffer(fetchCtx, ref)
	})
}

// ApplyPackage resolves ref and makes the package the active discount.
func (s *Store) ApplyPackage(ctx context.Context, ref discounts.PackageRef) (State, error) {
	return s.applyResolved(ctx, func(fetchCtx context.Context) (*discounts.Source, error) {
		return s.resolver.ResolvePackage(fetchCtx, ref)
	})
}

// ApplyEntry resolves flow-entry parameters. An entry without signals is a no-op.
func (s *Store) ApplyEntry(ctx context.Context, entry discounts.Entry) (State, error) {
	if entry.IsZero() {
		return s.Snapshot(), nil
	}
	return s.applyResolved(ctx, func(fetchCtx context.Context) (*discounts.Source, error) {
		return s.resolver.ResolveEntry(fetchCtx, entry)
	})
}

// ApplyDiscount makes an already resolved source active.
func (s *Store) ApplyDiscount(ctx context.Context, src *discounts.Source) (State, error) {
	if err := src.Validate(); err != nil {
		return s.Snapshot(), err
	}
	gen, _ := s.begin(ctx)
	defer s.done(gen)
	return s.install(ctx, gen, src)
}

// ClearDiscount removes the active discount and its injected items. Pending
// discount fetches are superseded.
func (s *Store) ClearDiscount(ctx context.Context) (State, error) {
	gen := s.bump()
	return s.mutate(ctx, func(st *State) error {
		if !s.current(gen) {
			return superseded()
		}
		if st.ActiveDiscount == nil {
			return errNoChange
		}
		st.clearDiscount()
		return nil
	})
}

// Reset empties the quote.
func (s *Store) Reset(ctx context.Context) (State, error) {
	s.bump()
	return s.mutate(ctx, func(st *State) error {
		*st = NewState(s.key)
		return nil
	})
}

// errNoChange aborts a mutation without persisting or reporting an error.
var errNoChange = errors.New("no change")

func (s *Store) applyResolved(ctx context.Context, resolve func(context.Context) (*discounts.Source, error)) (State, error) {
	gen, fetchCtx := s.begin(ctx)
	defer s.done(gen)

	src, err := resolve(fetchCtx)
	if !s.current(gen) {
		return s.Snapshot(), superseded()
	}
	if err != nil {
		return s.Snapshot(), err
	}
	if src == nil {
		return s.Snapshot(), nil
	}
	return s.install(ctx, gen, src)
}

// install replaces the active discount with src unless src is already active.
func (s *Store) install(ctx context.Context, gen uint64, src *discounts.Source) (State, error) {
	if s.Snapshot().DiscountIdentity() == src.Identity() {
		return s.Snapshot(), nil
	}
	injected, err := s.injectedItems(ctx, src)
	if err != nil {
		return s.Snapshot(), err
	}

	return s.mutate(ctx, func(st *State) error {
		if !s.current(gen) {
			return superseded()
		}
		if st.DiscountIdentity() == src.Identity() {
			return errNoChange
		}
		st.clearDiscount()
		items := injected.Clone()
		if src.Package != nil {
			var absorbed types.LineItems
			st.LineItems, absorbed = absorbIncluded(st.LineItems, pricing.IncludedUnits(src.Package))
			attachAbsorbed(items, absorbed)
		}
		st.LineItems = append(st.LineItems, items...)
		st.ActiveDiscount = src.Clone()
		return nil
	})
}

// injectedItems builds the locked items a source places on the quote.
func (s *Store) injectedItems(ctx context.Context, src *discounts.Source) (types.LineItems, error) {
	owner := src.Identity()
	switch {
	case src.Offer != nil && src.Offer.Mode == enums.OfferModeBonusItem:
		treatment, err := s.catalog.GetTreatment(ctx, src.Offer.BonusTreatmentID)
		if err != nil {
			return nil, unknownTreatment(src.Offer.BonusTreatmentID, err)
		}
		item := newLineItem(treatment, 1)
		item.Nominal = treatment.Price
		item.UnitPrice = types.Money{}
		item.IsLocked = true
		item.IsBonus = true
		item.Owner = owner
		item.Recompute()
		return types.LineItems{item}, nil
	case src.Package != nil:
		var items types.LineItems
		seen := map[string]int{}
		for _, id := range src.Package.IncludedTreatments {
			if i, ok := seen[id]; ok {
				items[i].Quantity++
				items[i].Recompute()
				continue
			}
			treatment, err := s.catalog.GetTreatment(ctx, id)
			if err != nil {
				return nil, unknownTreatment(id, err)
			}
			item := newLineItem(treatment, 1)
			item.IsLocked = true
			item.Owner = owner
			seen[id] = len(items)
			items = append(items, item)
		}
		return items, nil
	}
	return nil, nil
}

// mutate applies fn to a copy of the state, recomputes totals and persists.
// A persistence failure keeps the in-memory change and is returned with it.
func (s *Store) mutate(ctx context.Context, fn func(*State) error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired.Load() {
		return s.state.Clone(), storeRetired()
	}

	next := s.state.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, errNoChange) {
			return s.state.Clone(), nil
		}
		return s.state.Clone(), err
	}
	next.recompute()
	next.UpdatedAt = s.now().UTC()
	s.state = next

	if err := s.persist.Save(ctx, s.key, next.Clone()); err != nil {
		return next.Clone(), persistenceFailure(err)
	}
	return next.Clone(), nil
}

// begin starts a discount write: it supersedes any pending fetch and returns
// a context that is cancelled when this write is superseded in turn.
func (s *Store) begin(ctx context.Context) (uint64, context.Context) {
	fetchCtx, cancel := context.WithCancel(ctx)
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.cancel = cancel
	return s.generation, fetchCtx
}

func (s *Store) bump() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	return s.generation
}

func (s *Store) done(gen uint64) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generation == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Store) current(gen uint64) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generation == gen
}

func newLineItem(t catalog.Treatment, quantity int) types.LineItem {
	item := types.LineItem{
		ID:          uuid.New(),
		TreatmentID: t.ID,
		Name:        t.Name,
		Category:    t.Category,
		Quantity:    quantity,
		UnitPrice:   t.Price,
	}
	item.Recompute()
	return item
}

// absorbIncluded takes the user units a package covers off the quote so the
// package's own items replace them. The taken units are returned keeping
// their line item ids.
func absorbIncluded(items types.LineItems, units map[string]int) (types.LineItems, types.LineItems) {
	out := make(types.LineItems, 0, len(items))
	var absorbed types.LineItems
	for _, item := range items {
		left := units[item.TreatmentID]
		if item.Injected() || left <= 0 {
			out = append(out, item)
			continue
		}
		take := min(left, item.Quantity)
		units[item.TreatmentID] = left - take

		taken := item
		taken.Quantity = take
		taken.Recompute()
		absorbed = append(absorbed, taken)

		item.Quantity -= take
		if item.Quantity > 0 {
			item.Recompute()
			out = append(out, item)
		}
	}
	return out, absorbed
}

// attachAbsorbed records each absorbed unit on the package item of the same
// treatment.
func attachAbsorbed(pkgItems, absorbed types.LineItems) {
	for _, taken := range absorbed {
		for i := range pkgItems {
			if pkgItems[i].TreatmentID == taken.TreatmentID {
				pkgItems[i].Absorbed = append(pkgItems[i].Absorbed, taken)
				break
			}
		}
	}
}

func removeAt(items types.LineItems, i int) types.LineItems {
	if i < 0 || i >= len(items) {
		return items
	}
	out := make(types.LineItems, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

// Retired reports whether the store stopped accepting mutations.
func (s *Store) Retired() bool { return s.retired.Load() }

// retire stops the store from accepting mutations once any in-flight one has
// finished. With reset the quote is emptied and that empty state persisted
// first. Pending discount fetches are superseded.
func (s *Store) retire(ctx context.Context, reset bool) error {
	s.bump()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired.Load() {
		return nil
	}
	s.retired.Store(true)
	if !reset {
		return nil
	}
	s.state = NewState(s.key)
	s.state.UpdatedAt = s.now().UTC()
	if err := s.persist.Save(ctx, s.key, s.state.Clone()); err != nil {
		return persistenceFailure(err)
	}
	return nil
}

// flush persists the current state unchanged apart from its timestamp.
func (s *Store) flush(ctx context.Context) (State, error) {
	return s.mutate(ctx, func(*State) error { return nil })
}
