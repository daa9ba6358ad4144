package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mydentalfly/quote-backend/pkg/enums"
)

// PromoCode stores a user-enterable discount token and its usage window.
type PromoCode struct {
	Code          string             `gorm:"column:code;primaryKey"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(6,2);not null;default:0"`
	FixedGBP      int64              `gorm:"column:fixed_gbp;not null;default:0"`
	FixedUSD      int64              `gorm:"column:fixed_usd;not null;default:0"`
	ValidFrom     *time.Time         `gorm:"column:valid_from"`
	ValidUntil    *time.Time         `gorm:"column:valid_until"`
	MaxUses       *int               `gorm:"column:max_uses"`
	UsedCount     int                `gorm:"column:used_count;not null;default:0"`
	Active        bool               `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (PromoCode) TableName() string { return "promo_codes" }
