package models

import (
	"time"

	"github.com/lib/pq"
)

// TreatmentPackage bundles treatments at a fixed price per currency.
type TreatmentPackage struct {
	ID                 string         `gorm:"column:id;primaryKey"`
	Title              string         `gorm:"column:title;not null"`
	ClinicID           string         `gorm:"column:clinic_id;not null"`
	FixedPriceGBP      int64          `gorm:"column:fixed_price_gbp;not null"`
	FixedPriceUSD      int64          `gorm:"column:fixed_price_usd;not null"`
	IncludedTreatments pq.StringArray `gorm:"column:included_treatments;type:text[];not null"`
	Active             bool           `gorm:"column:active;not null;default:true"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (TreatmentPackage) TableName() string { return "treatment_packages" }
