package models

import "time"

// Filing is one accepted SEC filing (accession number is globally unique).
type Filing struct {
	AccessionNumber string `gorm:"primaryKey;type:varchar(25)"`
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);not null;index"`
	FilingDate      string `gorm:"type:varchar(10);not null;index"`
	FormType        string `gorm:"type:varchar(10)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Filing) TableName() string {
	return "filings"
}

// FilingDocument is the raw ownership document body fetched from EDGAR,
// retained so parses can re-run without another network round trip.
type FilingDocument struct {
	AccessionNumber string `gorm:"primaryKey;type:varchar(25)"`
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);index"`
	SourceURL       string `gorm:"type:text"`
	Content         string `gorm:"type:text"`

	FetchedAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (FilingDocument) TableName() string {
	return "filing_documents"
}
