package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mydentalfly/quote-backend/pkg/enums"
)

// SpecialOffer is a clinic or platform discount, optionally scoped to one treatment.
type SpecialOffer struct {
	ID                    string             `gorm:"column:id;primaryKey"`
	Title                 string             `gorm:"column:title;not null"`
	ClinicID              string             `gorm:"column:clinic_id;not null"`
	Mode                  enums.OfferMode    `gorm:"column:mode;not null;default:'price_discount'"`
	DiscountType          enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue         decimal.Decimal    `gorm:"column:discount_value;type:numeric(6,2);not null;default:0"`
	FixedGBP              int64              `gorm:"column:fixed_gbp;not null;default:0"`
	FixedUSD              int64              `gorm:"column:fixed_usd;not null;default:0"`
	ApplicableTreatmentID *string            `gorm:"column:applicable_treatment_id"`
	BonusTreatmentID      *string            `gorm:"column:bonus_treatment_id"`
	ValidFrom             *time.Time         `gorm:"column:valid_from"`
	ValidUntil            *time.Time         `gorm:"column:valid_until"`
	Active                bool               `gorm:"column:active;not null;default:true"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (SpecialOffer) TableName() string { return "special_offers" }
