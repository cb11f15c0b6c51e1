package models

import "time"

// Backfill queue row statuses.
const (
	BackfillPending = "pending"
	BackfillQueued  = "queued"
	BackfillErrored = "error"
)

// BackfillItem is one historical Form 4 accession discovered for an issuer,
// waiting to be turned into fetch jobs in date order by the batch enqueuer.
type BackfillItem struct {
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);primaryKey"`
	AccessionNumber string `gorm:"type:varchar(25);primaryKey"`

	FilingDate string  `gorm:"type:varchar(10);not null;index"`
	FormType   string  `gorm:"type:varchar(10);not null"`
	Status     string  `gorm:"type:varchar(10);not null;default:pending;index"`
	LastError  *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BackfillItem) TableName() string {
	return "backfill_queue"
}
