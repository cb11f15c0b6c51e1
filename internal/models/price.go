package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssuerPrice is one adjusted daily close for an issuer, keyed by CIK so the
// series survives ticker changes.
type IssuerPrice struct {
	IssuerCIK string  `gorm:"column:issuer_cik;type:varchar(10);primaryKey"`
	Date      string  `gorm:"type:varchar(10);primaryKey"`
	AdjClose  float64 `gorm:"type:double precision;not null"`

	FetchedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (IssuerPrice) TableName() string {
	return "issuer_prices"
}

// BenchmarkPrice is one adjusted daily close for a benchmark symbol.
type BenchmarkPrice struct {
	Symbol   string  `gorm:"type:varchar(12);primaryKey"`
	Date     string  `gorm:"type:varchar(10);primaryKey"`
	AdjClose float64 `gorm:"type:double precision;not null"`

	FetchedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BenchmarkPrice) TableName() string {
	return "benchmark_prices"
}

// MarketCapCache holds the latest fundamentals market cap per ticker, with
// the derived size bucket.
type MarketCapCache struct {
	Ticker       string           `gorm:"type:varchar(12);primaryKey"`
	MarketCapUSD *decimal.Decimal `gorm:"column:market_cap_usd;type:numeric(30,2)"`
	Bucket       *string          `gorm:"type:varchar(10)"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketCapCache) TableName() string {
	return "market_cap_cache"
}
