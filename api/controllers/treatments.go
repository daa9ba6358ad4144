package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mydentalfly/quote-backend/api/responses"
	"github.com/mydentalfly/quote-backend/api/validators"
	"github.com/mydentalfly/quote-backend/internal/catalog"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/logger"
)

// ListTreatments returns the catalog, optionally filtered by ?category=.
func ListTreatments(provider catalog.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		var category enums.TreatmentCategory
		if raw := validators.SanitizeString(r.URL.Query().Get("category"), 64); raw != "" {
			parsed, err := enums.ParseTreatmentCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").
					WithDetails(map[string]string{"category": raw}))
				return
			}
			category = parsed
		}

		treatments, err := provider.ListTreatments(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog could not be loaded"))
			return
		}

		if category != "" {
			filtered := make([]catalog.Treatment, 0, len(treatments))
			for _, t := range treatments {
				if t.Category == category {
					filtered = append(filtered, t)
				}
			}
			treatments = filtered
		}

		responses.WriteSuccess(w, treatments)
	}
}

func GetTreatment(provider catalog.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "treatmentId"))
		treatment, err := provider.GetTreatment(r.Context(), id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "treatment not found").
					WithDetails(map[string]string{"treatmentId": id}))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog could not be loaded"))
			return
		}

		responses.WriteSuccess(w, treatment)
	}
}
