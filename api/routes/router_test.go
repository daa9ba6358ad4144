package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mydentalfly/quote-backend/api/controllers"
	"github.com/mydentalfly/quote-backend/internal/catalog"
	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/internal/persistence"
	"github.com/mydentalfly/quote-backend/internal/promotions"
	"github.com/mydentalfly/quote-backend/internal/quote"
	"github.com/mydentalfly/quote-backend/internal/submissions"
	"github.com/mydentalfly/quote-backend/pkg/config"
	"github.com/mydentalfly/quote-backend/pkg/db/dbtest"
	"github.com/mydentalfly/quote-backend/pkg/logger"
	"github.com/mydentalfly/quote-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		Quote: config.QuoteConfig{
			Persistence:   config.PersistenceMemory,
			SessionTTL:    time.Hour,
			CatalogSource: config.CatalogSourceStatic,
		},
		RateLimit: config.RateLimitConfig{PromoWindow: time.Minute, PromoIPLimit: 30, PromoKeyLimit: 10},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	conn := dbtest.NewSQLite(t)
	promos := promotions.NewRepository(conn)
	resolver, err := discounts.NewResolver(promos, promos, promos, nil)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	submitter, err := submissions.NewService(conn, promos)
	if err != nil {
		t.Fatalf("submissions: %v", err)
	}
	registry := prometheus.NewRegistry()
	svc, err := quote.NewService(quote.ServiceParams{
		Catalog:     catalog.Default(),
		Resolver:    resolver,
		Persistence: persistence.NewMemory(),
		Submitter:   submitter,
		Metrics:     metrics.NewQuoteMetrics(registry),
		Logger:      logger.Nop(),
	})
	if err != nil {
		t.Fatalf("quote service: %v", err)
	}

	return NewRouter(Deps{
		Config:   testConfig(),
		Logger:   logger.Nop(),
		Catalog:  catalog.Default(),
		Quotes:   svc,
		Gatherer: registry,
		Pingers:  map[string]controllers.Pinger{"db": stubPinger{}},
	})
}

type stateBody struct {
	Data struct {
		QuoteKey  string `json:"quoteKey"`
		LineItems []struct {
			ID       string `json:"id"`
			IsLocked bool   `json:"isLocked"`
		} `json:"lineItems"`
		DiscountState string `json:"discountState"`
		Total         struct {
			GBP int64 `json:"gbp"`
			USD int64 `json:"usd"`
		} `json:"total"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, stateBody) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var parsed stateBody
	if !strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		return resp, parsed
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	// Only quote states are parsed; list payloads are checked by status alone.
	if data := bytes.TrimSpace(envelope.Data); len(data) > 0 && data[0] != '{' {
		return resp, parsed
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp, parsed
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, _ := do(t, router, http.MethodGet, path, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestTreatmentRoutes(t *testing.T) {
	router := newTestRouter(t)

	resp, _ := do(t, router, http.MethodGet, "/api/v1/treatments", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	resp, _ = do(t, router, http.MethodGet, "/api/v1/treatments/dental_implant_standard", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	resp, _ = do(t, router, http.MethodGet, "/api/v1/treatments/unknown", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestQuoteFlowEndToEnd(t *testing.T) {
	router := newTestRouter(t)

	resp, body := do(t, router, http.MethodPost, "/api/v1/quotes", `{"quoteKey":"flow-1"}`)
	if resp.Code != http.StatusOK || body.Data.QuoteKey != "flow-1" {
		t.Fatalf("open failed: %d %s", resp.Code, resp.Body.String())
	}

	resp, body = do(t, router, http.MethodPost, "/api/v1/quotes/flow-1/actions", `{"action":"addTreatment","treatmentId":"dental_implant_standard","quantity":2}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("add failed: %d %s", resp.Code, resp.Body.String())
	}

	resp, body = do(t, router, http.MethodPost, "/api/v1/quotes/flow-1/actions", `{"action":"applyPromo","promoCode":"TEST10"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("promo failed: %d %s", resp.Code, resp.Body.String())
	}
	if body.Data.Total.GBP != 1575 || body.Data.Total.USD != 2016 {
		t.Fatalf("unexpected total %+v", body.Data.Total)
	}
	if body.Data.DiscountState != "promo_applied" {
		t.Fatalf("unexpected discount state %q", body.Data.DiscountState)
	}

	resp, body = do(t, router, http.MethodPost, "/api/v1/quotes/flow-1/actions", `{"action":"applyPromo","promoCode":"NOPE"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid promo got %d", resp.Code)
	}

	resp, body = do(t, router, http.MethodGet, "/api/v1/quotes/flow-1", "")
	if resp.Code != http.StatusOK || body.Data.Total.GBP != 1575 {
		t.Fatalf("invalid promo must leave state unchanged: %d %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/flow-1/submit", strings.NewReader(`{"name":"Ana","email":"ana@example.com"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for submit got %d: %s", rec.Code, rec.Body.String())
	}

	resp, _ = do(t, router, http.MethodGet, "/api/v1/quotes/flow-1", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("submitted quote should be cleared, got %d", resp.Code)
	}
}

func TestOpenWithPackageEntryAndLockedRemoval(t *testing.T) {
	router := newTestRouter(t)

	resp, body := do(t, router, http.MethodPost, "/api/v1/quotes?packageId=implant-duo", `{"quoteKey":"pkg-1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("open failed: %d %s", resp.Code, resp.Body.String())
	}
	if body.Data.DiscountState != "package_applied" || len(body.Data.LineItems) == 0 {
		t.Fatalf("expected package items, got %+v", body.Data)
	}
	if body.Data.Total.GBP != 1500 || body.Data.Total.USD != 1920 {
		t.Fatalf("expected fixed package price, got %+v", body.Data.Total)
	}

	locked := body.Data.LineItems[0]
	if !locked.IsLocked {
		t.Fatalf("package items should be locked")
	}
	resp, body = do(t, router, http.MethodPost, "/api/v1/quotes/pkg-1/actions", `{"action":"removeTreatment","lineItemId":"`+locked.ID+`"}`)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for locked removal got %d", resp.Code)
	}

	resp, body = do(t, router, http.MethodPost, "/api/v1/quotes/pkg-1/actions", `{"action":"removeTreatment","lineItemId":"`+locked.ID+`","clearOwningDiscount":true}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 when clearing owner got %d: %s", resp.Code, resp.Body.String())
	}
	if body.Data.DiscountState != "none" || len(body.Data.LineItems) != 0 {
		t.Fatalf("expected empty quote after clearing package, got %+v", body.Data)
	}
}

func TestLegacyPromoRouteIsDeprecatedAdapter(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/api/v1/quotes", `{"quoteKey":"legacy-1"}`)
	do(t, router, http.MethodPost, "/api/v1/quotes/legacy-1/actions", `{"action":"addTreatment","treatmentId":"dental_implant_standard","quantity":2}`)

	resp, body := do(t, router, http.MethodPost, "/api/quotes/legacy-1/promo", `{"code":"test10"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("legacy promo failed: %d %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("Deprecation") != "true" {
		t.Fatalf("expected deprecation header")
	}
	if body.Data.Total.GBP != 1575 {
		t.Fatalf("unexpected total %+v", body.Data.Total)
	}

	resp, body = do(t, router, http.MethodDelete, "/api/quotes/legacy-1/promo", "")
	if resp.Code != http.StatusOK || body.Data.Total.GBP != 1750 {
		t.Fatalf("legacy clear failed: %d %s", resp.Code, resp.Body.String())
	}

	resp, body = do(t, router, http.MethodPost, "/api/integration/quotes/legacy-1/special-offer", `{"offerId":"implant-spring-20"}`)
	if resp.Code != http.StatusOK || body.Data.DiscountState != "offer_applied" {
		t.Fatalf("legacy special offer failed: %d %s", resp.Code, resp.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/api/v1/quotes", `{"quoteKey":"metrics-1"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "quote_operations_total") {
		t.Fatalf("expected quote metrics in exposition, got %s", resp.Body.String())
	}
}
