package quote

import (
	"errors"
	"fmt"

	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
)

var (
	ErrUnknownTreatment   = errors.New("unknown treatment")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrLineItemLocked     = errors.New("line item locked")
	ErrLineItemNotFound   = errors.New("line item not found")
	ErrDiscountSuperseded = errors.New("discount superseded")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrQuoteNotFound      = errors.New("quote not found")
	ErrStoreRetired       = errors.New("quote store retired")
)

func unknownTreatment(id string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, fmt.Errorf("%w: %w", ErrUnknownTreatment, cause), fmt.Sprintf("treatment %s is not in the catalog", id)).
		WithDetails(map[string]string{"treatmentId": id})
}

func invalidQuantity(quantity int) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidQuantity, "quantity must be at least 1").
		WithDetails(map[string]string{"quantity": fmt.Sprintf("got %d", quantity)})
}

func lineItemLocked(id string) error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrLineItemLocked, "line item belongs to the active discount").
		WithDetails(map[string]string{"lineItemId": id})
}

func lineItemNotFound(id string) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrLineItemNotFound, fmt.Sprintf("line item %s is not on the quote", id))
}

func superseded() error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrDiscountSuperseded, "a newer discount change replaced this one")
}

func storeRetired() error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrStoreRetired, "quote was unloaded, retry the change")
}

func persistenceFailure(cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodePersistence, fmt.Errorf("%w: %w", ErrPersistenceFailure, cause), "quote changes could not be saved")
}

// IsWarning reports whether err accompanies a successful mutation rather than
// replacing it.
func IsWarning(err error) bool {
	return errors.Is(err, ErrPersistenceFailure)
}
