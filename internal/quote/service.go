package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/logger"
	"github.com/mydentalfly/quote-backend/pkg/metrics"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// Service exposes the canonical quote operation set across quote keys.
type Service interface {
	Open(ctx context.Context, key string, entry discounts.Entry) (State, error)
	Get(ctx context.Context, key string) (State, error)
	Dispatch(ctx context.Context, key string, cmd Command) (State, error)
	Submit(ctx context.Context, key string, contact Contact) (Receipt, error)
}

// Contact identifies the patient submitting a quote.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email" validate:"required,email"`
}

// Receipt acknowledges a submitted quote.
type Receipt struct {
	SubmissionID uuid.UUID   `json:"submissionId"`
	QuoteKey     string      `json:"quoteKey"`
	Total        types.Money `json:"total"`
	SubmittedAt  time.Time   `json:"submittedAt"`
}

// ServiceParams wires a quote service.
type ServiceParams struct {
	Catalog     CatalogProvider
	Resolver    DiscountResolver
	Persistence Persistence
	Submitter   Submitter
	Metrics     *metrics.QuoteMetrics
	Logger      *logger.Logger
	Now         func() time.Time
	NewKey      func() string
	// IdleTTL evicts quotes untouched for this long; zero uses DefaultIdleTTL.
	IdleTTL time.Duration
	// MaxLoaded caps loaded quotes; zero uses DefaultMaxLoaded.
	MaxLoaded int
}

const (
	DefaultIdleTTL   = 30 * time.Minute
	DefaultMaxLoaded = 10000
)

// Sweeper drops idle quotes from memory. Evicted quotes reload from
// persistence on next use.
type Sweeper interface {
	SweepIdle(ctx context.Context) int
}

type loaded struct {
	store    *Store
	lastUsed time.Time
	// inUse counts requests holding the store; held stores are never evicted.
	inUse int
}

// maxAttempts bounds retries of an operation whose store was retired under it.
const maxAttempts = 2

type service struct {
	deps      StoreDeps
	submitter Submitter
	metrics   *metrics.QuoteMetrics
	logg      *logger.Logger
	newKey    func() string
	backend   string
	now       func() time.Time
	idleTTL   time.Duration
	maxLoaded int

	mu     sync.Mutex
	stores map[string]*loaded
}

// backendNamer is implemented by persistence adapters that label their metrics.
type backendNamer interface {
	Backend() string
}

// NewService builds a quote service backed by the provided stack.
func NewService(p ServiceParams) (Service, error) {
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if p.Resolver == nil {
		return nil, fmt.Errorf("discount resolver required")
	}
	if p.Persistence == nil {
		return nil, fmt.Errorf("persistence required")
	}
	if p.Submitter == nil {
		return nil, fmt.Errorf("submitter required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	newKey := p.NewKey
	if newKey == nil {
		newKey = func() string { return uuid.NewString() }
	}
	backend := "unknown"
	if named, ok := p.Persistence.(backendNamer); ok {
		backend = named.Backend()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	idleTTL := p.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	maxLoaded := p.MaxLoaded
	if maxLoaded <= 0 {
		maxLoaded = DefaultMaxLoaded
	}
	return &service{
		deps: StoreDeps{
			Catalog:     p.Catalog,
			Resolver:    p.Resolver,
			Persistence: p.Persistence,
			Now:         p.Now,
		},
		submitter: p.Submitter,
		metrics:   p.Metrics,
		logg:      logg,
		newKey:    newKey,
		backend:   backend,
		now:       now,
		idleTTL:   idleTTL,
		maxLoaded: maxLoaded,
		stores:    map[string]*loaded{},
	}, nil
}

// Open starts or resumes a quote flow. Persisted state is read once; a
// discount signal in entry takes precedence over the persisted discount.
func (s *service) Open(ctx context.Context, key string, entry discounts.Entry) (State, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = s.newKey()
	}
	ctx = s.logg.WithQuoteKey(ctx, key)
	start := time.Now()

	var state State
	err := s.withStore(ctx, key, true, func(store *Store, created bool) error {
		var err error
		switch {
		case !entry.IsZero():
			state, err = store.ApplyEntry(ctx, entry)
		case created:
			state, err = store.flush(ctx)
		default:
			state = store.Snapshot()
		}
		return err
	})
	s.afterMutation(ctx, "", state, err)
	s.observe(ctx, "open", start, err)
	return state, err
}

// Get returns the current state of a known quote.
func (s *service) Get(ctx context.Context, key string) (State, error) {
	ctx = s.logg.WithQuoteKey(ctx, key)
	var state State
	err := s.withStore(ctx, key, false, func(store *Store, _ bool) error {
		state = store.Snapshot()
		return nil
	})
	if err != nil {
		return State{}, err
	}
	return state, nil
}

// Dispatch applies cmd to the quote identified by key.
func (s *service) Dispatch(ctx context.Context, key string, cmd Command) (State, error) {
	ctx = s.logg.WithQuoteKey(ctx, key)
	start := time.Now()
	action := string(cmd.Action)
	if _, err := enums.ParseQuoteAction(action); err != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported quote action").
			WithDetails(map[string]string{"action": action})
		s.observe(ctx, "invalid", start, err)
		return State{}, err
	}

	var (
		state  State
		before string
	)
	err := s.withStore(ctx, key, false, func(store *Store, _ bool) error {
		before = store.Snapshot().DiscountIdentity()
		var err error
		state, err = store.Dispatch(ctx, cmd)
		return err
	})
	s.afterMutation(ctx, before, state, err)
	s.observe(ctx, action, start, err)
	return state, err
}

// Submit records the quote and clears it. A quote can be submitted once.
func (s *service) Submit(ctx context.Context, key string, contact Contact) (Receipt, error) {
	ctx = s.logg.WithQuoteKey(ctx, key)
	start := time.Now()

	receipt, err := s.submit(ctx, key, contact)
	s.observe(ctx, "submit", start, err)
	return receipt, err
}

func (s *service) submit(ctx context.Context, key string, contact Contact) (Receipt, error) {
	store, _, release, err := s.acquire(ctx, key, false)
	if err != nil {
		return Receipt{}, err
	}
	defer release()

	state := store.Snapshot()
	if len(state.LineItems) == 0 {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeStateConflict, "quote has no treatments to submit")
	}

	receipt, err := s.submitter.Submit(ctx, state, contact)
	if err != nil {
		return Receipt{}, err
	}

	// Retiring first means a request still holding the store cannot save the
	// submitted quote back after it is deleted.
	if err := store.retire(ctx, true); err != nil {
		s.persistenceWarning(ctx, "reset", err)
	}
	if deleter, ok := s.deps.Persistence.(Deleter); ok {
		if err := deleter.Delete(ctx, key); err != nil {
			s.persistenceWarning(ctx, "delete", err)
		}
	}
	s.mu.Lock()
	if entry, ok := s.stores[key]; ok && entry.store == store {
		delete(s.stores, key)
	}
	s.mu.Unlock()

	s.logg.Info(ctx, "quote submitted")
	return receipt, nil
}

// withStore runs fn against the loaded store for key. When the store is
// retired under fn, the quote is reloaded and fn runs again.
func (s *service) withStore(ctx context.Context, key string, create bool, fn func(store *Store, created bool) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var (
			store   *Store
			created bool
			release func()
		)
		store, created, release, err = s.acquire(ctx, key, create)
		if err != nil {
			return err
		}
		err = fn(store, created)
		release()
		if !errors.Is(err, ErrStoreRetired) {
			return err
		}
	}
	return err
}

// acquire returns the in-process store for key, loading persisted state on
// first use, and marks it in use until release is called. Unknown keys fail
// unless create is set.
func (s *service) acquire(ctx context.Context, key string, create bool) (*Store, bool, func(), error) {
	s.mu.Lock()
	if entry, ok := s.stores[key]; ok && !entry.store.Retired() {
		release := s.holdLocked(entry)
		s.mu.Unlock()
		return entry.store, false, release, nil
	}
	s.mu.Unlock()

	persisted, err := s.deps.Persistence.Load(ctx, key)
	if err != nil {
		s.metrics.IncPersistenceFailure(s.backend, "load")
		return nil, false, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", ErrPersistenceFailure, err), "quote could not be loaded")
	}
	if persisted == nil && !create {
		return nil, false, nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrQuoteNotFound, fmt.Sprintf("quote %s not found", key))
	}

	store, err := NewStore(key, s.deps, persisted)
	if err != nil {
		return nil, false, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "quote store could not be built")
	}

	s.mu.Lock()
	if raced, ok := s.stores[key]; ok && !raced.store.Retired() {
		release := s.holdLocked(raced)
		s.mu.Unlock()
		return raced.store, false, release, nil
	}
	var evicted *Store
	if _, replacing := s.stores[key]; !replacing && len(s.stores) >= s.maxLoaded {
		evicted = s.evictOldestLocked()
	}
	entry := &loaded{store: store}
	s.stores[key] = entry
	release := s.holdLocked(entry)
	s.mu.Unlock()

	if evicted != nil {
		_ = evicted.retire(ctx, false)
	}
	return store, persisted == nil, release, nil
}

func (s *service) holdLocked(entry *loaded) func() {
	entry.inUse++
	entry.lastUsed = s.now()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			entry.inUse--
			entry.lastUsed = s.now()
			s.mu.Unlock()
		})
	}
}

// SweepIdle unloads quotes untouched for longer than the idle TTL. Quotes a
// request is holding are left alone.
func (s *service) SweepIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.idleTTL)
	var idle []*Store
	s.mu.Lock()
	for key, entry := range s.stores {
		if entry.inUse == 0 && entry.lastUsed.Before(cutoff) {
			delete(s.stores, key)
			idle = append(idle, entry.store)
		}
	}
	s.mu.Unlock()

	for _, store := range idle {
		_ = store.retire(ctx, false)
	}
	if len(idle) > 0 {
		s.logg.Debug(s.logg.WithField(ctx, "evicted", len(idle)), "idle quotes unloaded")
	}
	return len(idle)
}

// evictOldestLocked removes the least recently used idle quote. It returns
// nil when every loaded quote is in use.
func (s *service) evictOldestLocked() *Store {
	var (
		oldestKey string
		oldest    *loaded
	)
	for key, entry := range s.stores {
		if entry.inUse > 0 {
			continue
		}
		if oldest == nil || entry.lastUsed.Before(oldest.lastUsed) {
			oldestKey, oldest = key, entry
		}
	}
	if oldest == nil {
		return nil
	}
	delete(s.stores, oldestKey)
	return oldest.store
}

func (s *service) afterMutation(ctx context.Context, before string, state State, err error) {
	if err != nil && IsWarning(err) {
		s.persistenceWarning(ctx, "save", err)
	}
	if err != nil && !IsWarning(err) {
		return
	}
	if identity := state.DiscountIdentity(); identity != "" && identity != before {
		s.metrics.IncDiscountApplied(string(state.ActiveDiscount.Kind))
		s.logg.Info(s.logg.WithDiscount(ctx, identity), "discount applied")
	}
}

func (s *service) persistenceWarning(ctx context.Context, op string, err error) {
	s.metrics.IncPersistenceFailure(s.backend, op)
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"backend": s.backend,
		"op":      op,
		"error":   err.Error(),
	}), "quote persistence failed")
}

func (s *service) observe(ctx context.Context, action string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsWarning(err):
		result = "warning"
	default:
		code := pkgerrors.CodeOf(err)
		result = strings.ToLower(string(code))
		if pkgerrors.MetadataFor(code).HTTPStatus >= 500 && !errors.Is(err, discounts.ErrDiscountSourceUnavailable) {
			s.logg.Error(ctx, "quote operation failed", err)
		}
	}
	s.metrics.ObserveOperation(action, result, time.Since(start))
}
