package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mydentalfly/quote-backend/api/responses"
	"github.com/mydentalfly/quote-backend/api/validators"
	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/internal/quote"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/logger"
)

type openQuoteRequest struct {
	QuoteKey string `json:"quoteKey" validate:"omitempty,max=128"`
	// Params carries entry URL parameters forwarded by the landing page.
	Params map[string]string `json:"params,omitempty"`
}

// OpenQuote starts or resumes a quote flow. Entry parameters may arrive in the
// query string, in the body, or both; body values win.
func OpenQuote(svc quote.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		var payload openQuoteRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		values := entryValues(r.URL.Query(), payload.Params)
		entry, err := discounts.ParseEntry(values)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := payload.QuoteKey
		if key == "" {
			key = values.Get("quoteKey")
		}
		key = strings.TrimSpace(key)
		if key != "" && !validators.ValidQuoteKey(key) {
			responses.WriteError(r.Context(), logg, w, invalidQuoteKey())
			return
		}
		state, err := svc.Open(r.Context(), key, entry)
		writeState(w, r, logg, state, err)
	}
}

func GetQuote(svc quote.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		key, err := quoteKeyParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := svc.Get(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// DispatchQuoteAction accepts {action, ...params} and returns the new snapshot.
func DispatchQuoteAction(svc quote.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		key, err := quoteKeyParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var cmd quote.Command
		if err := validators.DecodeJSONBody(r, &cmd); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := svc.Dispatch(r.Context(), key, cmd)
		writeState(w, r, logg, state, err)
	}
}

func SubmitQuote(svc quote.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		key, err := quoteKeyParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var contact quote.Contact
		if err := validators.DecodeJSONBody(r, &contact); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contact.Name = validators.SanitizeString(contact.Name, 200)
		contact.Email = validators.SanitizeString(contact.Email, 320)

		receipt, err := svc.Submit(r.Context(), key, contact)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}

// writeState answers with the snapshot. Persistence failures keep the
// mutation, so they travel as warnings next to a 200.
func writeState(w http.ResponseWriter, r *http.Request, logg *logger.Logger, state quote.State, err error) {
	switch {
	case err == nil:
		responses.WriteSuccess(w, state)
	case quote.IsWarning(err):
		responses.WriteSuccessWithWarnings(w, http.StatusOK, state, err)
	default:
		responses.WriteError(r.Context(), logg, w, err)
	}
}

func quoteKeyParam(r *http.Request) (string, error) {
	key := strings.TrimSpace(chi.URLParam(r, "quoteKey"))
	if !validators.ValidQuoteKey(key) {
		return "", invalidQuoteKey()
	}
	return key, nil
}

func invalidQuoteKey() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid quote key").
		WithDetails(map[string]string{"quoteKey": "must be 1-128 letters, digits or -_.:"})
}

func entryValues(query url.Values, params map[string]string) url.Values {
	values := url.Values{}
	for k, v := range query {
		values[k] = append([]string(nil), v...)
	}
	for k, v := range params {
		values.Set(k, v)
	}
	return values
}
