package models

import "time"

// Issuer is one SEC registrant, keyed by zero-padded CIK.
type Issuer struct {
	IssuerCIK     string  `gorm:"column:issuer_cik;primaryKey;type:varchar(10)"`
	CurrentTicker *string `gorm:"type:varchar(12);index"`
	IssuerName    string  `gorm:"type:text"`

	// LastFilingDate can lag behind the filings table; readers prefer
	// max(filings.filing_date) when available.
	LastFilingDate *string `gorm:"type:varchar(10)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Issuer) TableName() string {
	return "issuer_master"
}
