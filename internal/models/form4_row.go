package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Form4Row is one transaction leg from a parsed Form 4, one row per
// (accession, owner, leg). Parsing an accession replaces its rows wholesale;
// rows are the source of truth that events are re-derivable from.
type Form4Row struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	AccessionNumber string `gorm:"type:varchar(25);not null;uniqueIndex:idx_form4_rows_leg,priority:1;index"`
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);not null;uniqueIndex:idx_form4_rows_leg,priority:2;index"`
	OwnerKey        string `gorm:"type:varchar(120);not null;uniqueIndex:idx_form4_rows_leg,priority:3;index"`
	RowSeq          int    `gorm:"not null;uniqueIndex:idx_form4_rows_leg,priority:4"`

	OwnerCIK  *string `gorm:"column:owner_cik;type:varchar(10)"`
	OwnerName string  `gorm:"type:text"`

	TransactionDate *string `gorm:"type:varchar(10);index"`
	TransactionCode string  `gorm:"type:varchar(2);index"`
	IsDerivative    bool    `gorm:"not null;default:false"`

	Shares               *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Price                *decimal.Decimal `gorm:"type:numeric(30,10)"`
	SharesOwnedFollowing *decimal.Decimal `gorm:"type:numeric(30,10)"`

	// RawPayload keeps the reporting-owner block (role flags, officer title)
	// and the filing footnotes exactly as parsed, for audit and aggregation.
	RawPayload datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Form4Row) TableName() string {
	return "form4_rows_raw"
}

// ReportingOwner is the shape stored in Form4Row.RawPayload.
type ReportingOwner struct {
	OfficerTitle      string `json:"officer_title,omitempty"`
	IsOfficer         bool   `json:"is_officer"`
	IsDirector        bool   `json:"is_director"`
	IsTenPercentOwner bool   `json:"is_ten_percent_owner"`

	Footnotes []string `json:"footnotes,omitempty"`
}
