package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mydentalfly/quote-backend/internal/repo"
	"github.com/mydentalfly/quote-backend/pkg/db/models"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// Repository serves the catalog from the treatments table.
type Repository struct {
	repo.Base
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) GetTreatment(ctx context.Context, id string) (Treatment, error) {
	var row models.Treatment
	err := r.DB(ctx).Where("id = ? AND active = ?", id, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Treatment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Treatment{}, fmt.Errorf("load treatment %s: %w", id, err)
	}
	return fromModel(row), nil
}

func (r *Repository) ListTreatments(ctx context.Context) ([]Treatment, error) {
	var rows []models.Treatment
	if err := r.DB(ctx).Where("active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}
	out := make([]Treatment, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func fromModel(row models.Treatment) Treatment {
	return Treatment{
		ID:            row.ID,
		Name:          row.Name,
		Category:      row.Category,
		Price:         types.NewMoney(row.PriceGBP, row.PriceUSD),
		GuaranteeTerm: row.GuaranteeTerm,
	}
}
