package models

import (
	"time"

	"gorm.io/datatypes"
)

// AIOutput is one immutable judge run for an event. InputsHash is the
// canonical hash of the input snapshot; a rerun with an unchanged hash is
// skipped unless forced, so rows also act as the dedupe record.
type AIOutput struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);not null;index:idx_ai_outputs_event,priority:1"`
	OwnerKey        string `gorm:"type:varchar(120);not null;index:idx_ai_outputs_event,priority:2"`
	AccessionNumber string `gorm:"type:varchar(25);not null;index:idx_ai_outputs_event,priority:3"`

	ModelID             string `gorm:"type:varchar(80);not null"`
	PromptVersion       int    `gorm:"not null"`
	InputSchemaVersion  int    `gorm:"not null;default:1"`
	OutputSchemaVersion int    `gorm:"not null;default:1"`
	InputsHash          string `gorm:"type:varchar(64);not null;index"`

	BuyRating  *float64 `gorm:"type:double precision"`
	SellRating *float64 `gorm:"type:double precision"`
	Confidence *float64 `gorm:"type:double precision"`

	Input  datatypes.JSON `gorm:"type:jsonb"`
	Output datatypes.JSON `gorm:"type:jsonb"`

	GeneratedAt time.Time `gorm:"type:timestamptz;not null;index"`
}

func (AIOutput) TableName() string {
	return "ai_outputs"
}
