package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mydentalfly/quote-backend/pkg/enums"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// QuoteSubmission records a quote at the moment the patient submitted it.
type QuoteSubmission struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	QuoteKey         string              `gorm:"column:quote_key;not null;uniqueIndex:quote_submissions_quote_key_key"`
	LineItems        types.LineItems     `gorm:"column:line_items;type:jsonb;not null"`
	DiscountKind     *enums.DiscountKind `gorm:"column:discount_kind"`
	DiscountIdentity *string             `gorm:"column:discount_identity"`
	SubtotalGBP      int64               `gorm:"column:subtotal_gbp;not null"`
	SubtotalUSD      int64               `gorm:"column:subtotal_usd;not null"`
	DiscountGBP      int64               `gorm:"column:discount_gbp;not null"`
	DiscountUSD      int64               `gorm:"column:discount_usd;not null"`
	TotalGBP         int64               `gorm:"column:total_gbp;not null"`
	TotalUSD         int64               `gorm:"column:total_usd;not null"`
	ContactEmail     string              `gorm:"column:contact_email"`
	SubmittedAt      time.Time           `gorm:"column:submitted_at;not null"`
}

func (QuoteSubmission) TableName() string { return "quote_submissions" }
