package models

import "time"

// QuoteSnapshot is the durable copy of a quote session, stored as JSON.
type QuoteSnapshot struct {
	QuoteKey  string    `gorm:"column:quote_key;primaryKey"`
	Payload   string    `gorm:"column:payload;type:jsonb;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (QuoteSnapshot) TableName() string { return "quote_snapshots" }
