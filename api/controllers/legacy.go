package controllers

import (
	"net/http"
	"strings"

	"github.com/mydentalfly/quote-backend/api/responses"
	"github.com/mydentalfly/quote-backend/api/validators"
	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/internal/quote"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/logger"
)

type legacyPromoRequest struct {
	PromoCode string `json:"promoCode"`
	Code      string `json:"code"`
}

type legacySpecialOfferRequest struct {
	OfferID string                  `json:"offerId"`
	Offer   *discounts.SpecialOffer `json:"offer,omitempty"`
}

// LegacyApplyPromo adapts the old promo endpoint onto the applyPromo action.
func LegacyApplyPromo(svc quote.Service, logg *logger.Logger) http.HandlerFunc {
	return legacyAction(svc, logg, func(r *http.Request) (quote.Command, error) {
		var payload legacyPromoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return quote.Command{}, err
		}
		code := strings.TrimSpace(payload.PromoCode)
		if code == "" {
			code = strings.TrimSpace(payload.Code)
		}
		return quote.Command{Action: enums.QuoteActionApplyPromo, PromoCode: code}, nil
	})
}

// LegacyClearPromo adapts DELETE on the old promo endpoint onto clearDiscount.
func LegacyClearPromo(svc quote.Service, logg *logger.Logger) http.HandlerFunc {
	return legacyAction(svc, logg, func(*http.Request) (quote.Command, error) {
		return quote.Command{Action: enums.QuoteActionClearDiscount}, nil
	})
}

// LegacyApplySpecialOffer adapts the integration endpoint onto applyOffer.
func LegacyApplySpecialOffer(svc quote.Service, logg *logger.Logger) http.HandlerFunc {
	return legacyAction(svc, logg, func(r *http.Request) (quote.Command, error) {
		var payload legacySpecialOfferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return quote.Command{}, err
		}
		id := strings.TrimSpace(payload.OfferID)
		if id == "" && payload.Offer != nil {
			id = strings.TrimSpace(payload.Offer.ID)
		}
		if id == "" {
			return quote.Command{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"offerId": "is required"})
		}
		return quote.Command{
			Action: enums.QuoteActionApplyOffer,
			Offer:  &discounts.OfferRef{ID: id, Embedded: payload.Offer},
		}, nil
	})
}

func legacyAction(svc quote.Service, logg *logger.Logger, build func(*http.Request) (quote.Command, error)) http.HandlerFunc {
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

		cmd, err := build(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := svc.Dispatch(r.Context(), key, cmd)
		writeState(w, r, logg, state, err)
	}
}
