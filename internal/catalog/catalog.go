package catalog

import (
	"context"
	"errors"

	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// ErrNotFound is returned when a treatment id is not in the catalog.
var ErrNotFound = errors.New("treatment not found")

// Treatment is an immutable catalog entry.
type Treatment struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Category      enums.TreatmentCategory `json:"category"`
	Price         types.Money             `json:"price"`
	GuaranteeTerm string                  `json:"guaranteeTerm,omitempty"`
}

// Provider resolves treatments by id.
type Provider interface {
	GetTreatment(ctx context.Context, id string) (Treatment, error)
	ListTreatments(ctx context.Context) ([]Treatment, error)
}
