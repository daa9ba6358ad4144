package quote

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
)

// Command is the transport-independent shape of a quote action.
type Command struct {
	Action              enums.QuoteAction     `json:"action"`
	TreatmentID         string                `json:"treatmentId,omitempty"`
	LineItemID          string                `json:"lineItemId,omitempty"`
	Quantity            int                   `json:"quantity,omitempty"`
	PromoCode           string                `json:"promoCode,omitempty"`
	OfferID             string                `json:"offerId,omitempty"`
	Offer               *discounts.OfferRef   `json:"offer,omitempty"`
	PackageID           string                `json:"packageId,omitempty"`
	Package             *discounts.PackageRef `json:"package,omitempty"`
	ClearOwningDiscount bool                  `json:"clearOwningDiscount,omitempty"`
}

// Dispatch routes cmd to the matching store operation.
func (s *Store) Dispatch(ctx context.Context, cmd Command) (State, error) {
	switch cmd.Action {
	case enums.QuoteActionAddTreatment:
		if strings.TrimSpace(cmd.TreatmentID) == "" {
			return s.Snapshot(), missingParam("treatmentId")
		}
		quantity := cmd.Quantity
		if quantity == 0 {
			quantity = 1
		}
		return s.AddTreatment(ctx, strings.TrimSpace(cmd.TreatmentID), quantity)
	case enums.QuoteActionRemoveTreatment:
		id, err := parseLineItemID(cmd.LineItemID)
		if err != nil {
			return s.Snapshot(), err
		}
		return s.RemoveTreatment(ctx, id, RemoveOptions{ClearOwningDiscount: cmd.ClearOwningDiscount})
	case enums.QuoteActionUpdateQuantity:
		id, err := parseLineItemID(cmd.LineItemID)
		if err != nil {
			return s.Snapshot(), err
		}
		return s.UpdateQuantity(ctx, id, cmd.Quantity)
	case enums.QuoteActionApplyPromo:
		if strings.TrimSpace(cmd.PromoCode) == "" {
			return s.Snapshot(), missingParam("promoCode")
		}
		return s.ApplyPromo(ctx, cmd.PromoCode)
	case enums.QuoteActionApplyOffer:
		ref := cmd.Offer
		if ref == nil && strings.TrimSpace(cmd.OfferID) != "" {
			ref = &discounts.OfferRef{ID: strings.TrimSpace(cmd.OfferID)}
		}
		if ref == nil {
			return s.Snapshot(), missingParam("offerId")
		}
		return s.ApplyOffer(ctx, *ref)
	case enums.QuoteActionApplyPackage:
		ref := cmd.Package
		if ref == nil && strings.TrimSpace(cmd.PackageID) != "" {
			ref = &discounts.PackageRef{ID: strings.TrimSpace(cmd.PackageID)}
		}
		if ref == nil {
			return s.Snapshot(), missingParam("packageId")
		}
		return s.ApplyPackage(ctx, *ref)
	case enums.QuoteActionClearDiscount:
		return s.ClearDiscount(ctx)
	case enums.QuoteActionReset:
		return s.Reset(ctx)
	default:
		return s.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "unsupported quote action").
			WithDetails(map[string]string{"action": string(cmd.Action)})
	}
}

func parseLineItemID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, missingParam("lineItemId")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "lineItemId must be a uuid").
			WithDetails(map[string]string{"lineItemId": "must be a uuid"})
	}
	return id, nil
}

func missingParam(name string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, name+" is required").
		WithDetails(map[string]string{name: "is required"})
}
