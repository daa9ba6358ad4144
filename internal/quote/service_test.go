package quote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/metrics"
)

type stubSubmitter struct {
	calls []State
	err   error
}

func (s *stubSubmitter) Submit(_ context.Context, state State, contact Contact) (Receipt, error) {
	if s.err != nil {
		return Receipt{}, s.err
	}
	s.calls = append(s.calls, state)
	return Receipt{SubmissionID: uuid.New(), QuoteKey: state.QuoteKey, Total: state.Total, SubmittedAt: time.Now()}, nil
}

func newTestService(t *testing.T) (Service, *fixture, *stubSubmitter, *prometheus.Registry) {
	t.Helper()
	f := newFixture(t)
	sub := &stubSubmitter{}
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Catalog:     f.deps.Catalog,
		Resolver:    f.deps.Resolver,
		Persistence: f.persist,
		Submitter:   sub,
		Metrics:     metrics.NewQuoteMetrics(reg),
		NewKey:      func() string { return "generated-key" },
	})
	require.NoError(t, err)
	return svc, f, sub, reg
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	f := newFixture(t)
	_, err := NewService(ServiceParams{Catalog: f.deps.Catalog, Resolver: f.deps.Resolver, Persistence: f.persist})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Resolver: f.deps.Resolver, Persistence: f.persist, Submitter: &stubSubmitter{}})
	assert.Error(t, err)
}

func TestOpenCreatesAndPersistsQuote(t *testing.T) {
	svc, f, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.Open(ctx, "", discounts.Entry{})
	require.NoError(t, err)
	assert.Equal(t, "generated-key", state.QuoteKey)

	persisted, err := f.persist.Load(ctx, "generated-key")
	require.NoError(t, err)
	require.NotNil(t, persisted)

	got, err := svc.Get(ctx, "generated-key")
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestOpenEntryBeatsPersistedDiscount(t *testing.T) {
	svc, f, _, _ := newTestService(t)
	ctx := context.Background()

	seed, err := NewStore("returning", f.deps, nil)
	require.NoError(t, err)
	must(t)(seed.AddTreatment(ctx, "dental_implant_standard", 1))
	must(t)(seed.ApplyPromo(ctx, "TEST10"))

	state, err := svc.Open(ctx, "returning", discounts.Entry{Offer: &discounts.OfferRef{ID: "implant-spring-20"}})
	require.NoError(t, err)
	assert.Equal(t, "offer:implant-spring-20", state.DiscountIdentity())
	assert.Len(t, state.LineItems, 1, "persisted items survive")
	assert.Equal(t, int64(175), state.DiscountAmount.GBP)
}

func TestOpenRestoresPersistedSession(t *testing.T) {
	svc, f, _, _ := newTestService(t)
	ctx := context.Background()

	seed, err := NewStore("returning", f.deps, nil)
	require.NoError(t, err)
	must(t)(seed.AddTreatment(ctx, "zirconia_crown", 2))
	must(t)(seed.ApplyPromo(ctx, "FREECONSULT"))

	state, err := svc.Open(ctx, "returning", discounts.Entry{})
	require.NoError(t, err)
	assert.Equal(t, "promo:FREECONSULT", state.DiscountIdentity())
	assert.Equal(t, int64(520), state.Total.GBP)
}

func TestOpenFailedEntryKeepsQuote(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.Open(ctx, "k1", discounts.Entry{Package: &discounts.PackageRef{ID: "missing"}})
	assert.True(t, errors.Is(err, discounts.ErrDiscountSourceUnavailable))
	assert.Nil(t, state.ActiveDiscount)

	got, err := svc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got.ActiveDiscount)
}

func TestOpenLoadFailure(t *testing.T) {
	svc, f, _, _ := newTestService(t)
	f.persist.loadErr = errBoom

	_, err := svc.Open(context.Background(), "k", discounts.Entry{})
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.True(t, errors.Is(err, errBoom))
}

func TestGetUnknownQuote(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrQuoteNotFound))
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestDispatchActions(t *testing.T) {
	svc, _, _, reg := newTestService(t)
	ctx := context.Background()
	_, err := svc.Open(ctx, "q", discounts.Entry{})
	require.NoError(t, err)

	state, err := svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionAddTreatment, TreatmentID: "dental_implant_standard", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, state.LineItems, 1)

	state, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionApplyPromo, PromoCode: "TEST10"})
	require.NoError(t, err)
	assert.Equal(t, int64(1575), state.Total.GBP)

	state, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionApplyPackage, PackageID: "implant-duo"})
	require.NoError(t, err)
	assert.Equal(t, enums.DiscountStatePackageApplied, state.DiscountState)

	_, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionUpdateQuantity, LineItemID: "not-a-uuid", Quantity: 1})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionApplyOffer})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Dispatch(ctx, "q", Command{Action: "teleport"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	state, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionReset})
	require.NoError(t, err)
	assert.True(t, state.IsEmpty())

	assert.Equal(t, 2.0, counterValue(t, reg, "dentalquote_quote_discounts_applied_total", map[string]string{}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dentalquote_quote_operations_total", map[string]string{"action": "applyPromo", "result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dentalquote_quote_operations_total", map[string]string{"action": "updateQuantity", "result": "validation_error"}))
}

func TestDispatchReportsPersistenceWarning(t *testing.T) {
	svc, f, _, reg := newTestService(t)
	ctx := context.Background()
	_, err := svc.Open(ctx, "q", discounts.Entry{})
	require.NoError(t, err)

	f.persist.saveErr = errBoom
	state, err := svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionAddTreatment, TreatmentID: "teeth_whitening"})
	assert.True(t, IsWarning(err))
	assert.Len(t, state.LineItems, 1)
	assert.Equal(t, 1.0, counterValue(t, reg, "dentalquote_quote_persistence_failures_total", map[string]string{"backend": "test", "op": "save"}))
}

func TestSubmit(t *testing.T) {
	svc, f, sub, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Open(ctx, "q", discounts.Entry{})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "q", Contact{Email: "patient@example.com"})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err), "empty quotes cannot be submitted")

	_, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionAddTreatment, TreatmentID: "hollywood_smile"})
	require.NoError(t, err)

	receipt, err := svc.Submit(ctx, "q", Contact{Email: "patient@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(4200), receipt.Total.GBP)
	require.Len(t, sub.calls, 1)

	persisted, err := f.persist.Load(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, persisted, "submitted quotes are cleared")

	_, err = svc.Get(ctx, "q")
	assert.True(t, errors.Is(err, ErrQuoteNotFound))
}

func TestSubmitFailureKeepsQuote(t *testing.T) {
	svc, _, sub, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Open(ctx, "q", discounts.Entry{})
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionAddTreatment, TreatmentID: "sinus_lift"})
	require.NoError(t, err)

	sub.err = pkgerrors.New(pkgerrors.CodeConflict, "already submitted")
	_, err = svc.Submit(ctx, "q", Contact{Email: "patient@example.com"})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	state, err := svc.Get(ctx, "q")
	require.NoError(t, err)
	assert.Len(t, state.LineItems, 1)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matches(metric, labels) {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	for key, want := range labels {
		found := false
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == key && pair.GetValue() == want {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestSweepIdleUnloadsAndReloadsFromPersistence(t *testing.T) {
	f := newFixture(t)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		Catalog:     f.deps.Catalog,
		Resolver:    f.deps.Resolver,
		Persistence: f.persist,
		Submitter:   &stubSubmitter{},
		Now:         func() time.Time { return clock },
		IdleTTL:     time.Minute,
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Open(ctx, "idle", discounts.Entry{})
	require.NoError(t, err)
	before, err := svc.Dispatch(ctx, "idle", Command{Action: enums.QuoteActionAddTreatment, TreatmentID: "zirconia_crown", Quantity: 2})
	require.NoError(t, err)

	clock = clock.Add(50 * time.Second)
	_, err = svc.Open(ctx, "busy", discounts.Entry{})
	require.NoError(t, err)

	clock = clock.Add(20 * time.Second)
	sweeper, ok := svc.(Sweeper)
	require.True(t, ok)
	assert.Equal(t, 1, sweeper.SweepIdle(ctx))
	assert.Len(t, svc.(*service).stores, 1)

	after, err := svc.Get(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, before.Total, after.Total)
	assert.Len(t, after.LineItems, 1)
}

func TestLoadedQuotesAreCapped(t *testing.T) {
	f := newFixture(t)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		Catalog:     f.deps.Catalog,
		Resolver:    f.deps.Resolver,
		Persistence: f.persist,
		Submitter:   &stubSubmitter{},
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		MaxLoaded: 2,
	})
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := svc.Open(ctx, key, discounts.Entry{})
		require.NoError(t, err)
	}
	stores := svc.(*service).stores
	assert.Len(t, stores, 2)
	assert.NotContains(t, stores, "a")

	_, err = svc.Get(ctx, "a")
	require.NoError(t, err, "evicted quote reloads from persistence")
}

func TestSweepSkipsQuotesHeldByARequest(t *testing.T) {
	f := newFixture(t)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	svc, err := NewService(ServiceParams{
		Catalog:     f.deps.Catalog,
		Resolver:    f.deps.Resolver,
		Persistence: f.persist,
		Submitter:   &stubSubmitter{},
		Now:         now,
		IdleTTL:     time.Minute,
	})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = svc.Open(ctx, "held", discounts.Entry{})
	require.NoError(t, err)

	f.offers.entered = make(chan struct{}, 1)
	fetchCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		_, err := svc.Dispatch(fetchCtx, "held", Command{Action: enums.QuoteActionApplyOffer, OfferID: "implant-spring-20"})
		done <- err
	}()
	<-f.offers.entered

	clockMu.Lock()
	clock = clock.Add(time.Hour)
	clockMu.Unlock()
	sweeper := svc.(Sweeper)
	assert.Zero(t, sweeper.SweepIdle(ctx), "a quote waiting on a fetch stays loaded")

	cancel()
	<-done
	clockMu.Lock()
	clock = clock.Add(time.Hour)
	clockMu.Unlock()
	assert.Equal(t, 1, sweeper.SweepIdle(ctx))
}

func TestSubmitRetiresStoreHeldByPendingFetch(t *testing.T) {
	svc, f, sub, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Open(ctx, "q", discounts.Entry{})
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionAddTreatment, TreatmentID: "dental_implant_standard"})
	require.NoError(t, err)

	f.offers.entered = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		_, err := svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionApplyOffer, OfferID: "implant-spring-20"})
		done <- err
	}()
	<-f.offers.entered

	_, err = svc.Submit(ctx, "q", Contact{Email: "patient@example.com"})
	require.NoError(t, err)
	require.Len(t, sub.calls, 1)

	late := <-done
	assert.True(t, errors.Is(late, ErrDiscountSuperseded), "pending fetch is superseded, got %v", late)

	persisted, err := f.persist.Load(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, persisted, "the submitted quote is not written back")
}

func TestRetiredStoreIsReloadedOnNextUse(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Open(ctx, "q", discounts.Entry{})
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionAddTreatment, TreatmentID: "zirconia_crown"})
	require.NoError(t, err)

	old := svc.(*service).stores["q"].store
	require.NoError(t, old.retire(ctx, false))

	state, err := svc.Dispatch(ctx, "q", Command{Action: enums.QuoteActionAddTreatment, TreatmentID: "zirconia_crown"})
	require.NoError(t, err)
	assert.Len(t, state.LineItems, 2)
	assert.NotSame(t, old, svc.(*service).stores["q"].store)
}
