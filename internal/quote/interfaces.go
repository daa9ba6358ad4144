package quote

import (
	"context"

	"github.com/mydentalfly/quote-backend/internal/catalog"
	"github.com/mydentalfly/quote-backend/internal/discounts"
)

// CatalogProvider looks up treatments by id.
type CatalogProvider interface {
	GetTreatment(ctx context.Context, id string) (catalog.Treatment, error)
}

// DiscountResolver turns apply requests and entry parameters into sources.
type DiscountResolver interface {
	ResolvePromo(ctx context.Context, code string) (*discounts.Source, error)
	ResolveOffer(ctx context.Context, ref discounts.OfferRef) (*discounts.Source, error)
	ResolvePackage(ctx context.Context, ref discounts.PackageRef) (*discounts.Source, error)
	ResolveEntry(ctx context.Context, entry discounts.Entry) (*discounts.Source, error)
}

// Persistence stores quote snapshots. Load returns nil, nil for unknown keys.
type Persistence interface {
	Load(ctx context.Context, key string) (*State, error)
	Save(ctx context.Context, key string, state State) error
}

// Deleter is implemented by persistence backends that can drop a quote.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Submitter records a finished quote.
type Submitter interface {
	Submit(ctx context.Context, state State, contact Contact) (Receipt, error)
}
