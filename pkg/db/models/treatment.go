package models

import (
	"time"

	"github.com/mydentalfly/quote-backend/pkg/enums"
)

// Treatment is a catalog entry priced independently in GBP and USD.
type Treatment struct {
	ID            string                  `gorm:"column:id;primaryKey"`
	Name          string                  `gorm:"column:name;not null"`
	Category      enums.TreatmentCategory `gorm:"column:category;not null"`
	PriceGBP      int64                   `gorm:"column:price_gbp;not null"`
	PriceUSD      int64                   `gorm:"column:price_usd;not null"`
	GuaranteeTerm string                  `gorm:"column:guarantee_term"`
	Active        bool                    `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Treatment) TableName() string { return "treatments" }
