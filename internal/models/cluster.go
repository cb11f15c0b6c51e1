package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cluster is a window of same-side events on one ticker from distinct
// filings. The sweep for a ticker replaces its clusters wholesale; the
// deterministic ID keeps references stable across rebuilds.
type Cluster struct {
	ClusterID string `gorm:"type:varchar(80);primaryKey"`
	Ticker    string `gorm:"type:varchar(12);not null;index"`
	IssuerCIK string `gorm:"column:issuer_cik;type:varchar(10);not null;index"`
	Side      string `gorm:"type:varchar(4);not null"`

	StartDate string `gorm:"type:varchar(10);not null"`
	EndDate   string `gorm:"type:varchar(10);not null"`

	FilingCount   int              `gorm:"not null"`
	OwnerCount    int              `gorm:"not null"`
	TotalDollars  *decimal.Decimal `gorm:"type:numeric(30,10)"`
	ExecsInvolved bool             `gorm:"not null;default:false"`
	MaxPctChange  *float64         `gorm:"type:double precision"`

	ClusterVersion int       `gorm:"not null;default:1"`
	ComputedAt     time.Time `gorm:"type:timestamptz;not null"`
}

func (Cluster) TableName() string {
	return "insider_clusters"
}

// ClusterMember links a cluster to one contributing event side.
type ClusterMember struct {
	ClusterID       string `gorm:"type:varchar(80);primaryKey"`
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);primaryKey"`
	OwnerKey        string `gorm:"type:varchar(120);primaryKey"`
	AccessionNumber string `gorm:"type:varchar(25);primaryKey"`

	Side      string           `gorm:"type:varchar(4);not null"`
	TradeDate string           `gorm:"type:varchar(10);not null"`
	Dollars   *decimal.Decimal `gorm:"type:numeric(30,10)"`
	PctChange *float64         `gorm:"type:double precision"`
}

func (ClusterMember) TableName() string {
	return "insider_cluster_members"
}
