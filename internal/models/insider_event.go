package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InsiderEvent is the derived per-(issuer, owner, accession) record that all
// downstream compute stages enrich in place. Aggregation of the raw rows
// creates or rebuilds the base columns; trend, outcomes, clusters and the AI
// judge each own a column group and a *ComputedAt timestamp.
type InsiderEvent struct {
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);primaryKey"`
	OwnerKey        string `gorm:"type:varchar(120);primaryKey"`
	AccessionNumber string `gorm:"type:varchar(25);primaryKey;index"`

	Ticker         *string `gorm:"type:varchar(12);index"`
	IssuerName     string  `gorm:"type:text"`
	FilingDate     string  `gorm:"type:varchar(10);index"`
	EventTradeDate *string `gorm:"type:varchar(10);index"`

	OwnerCIK          *string `gorm:"column:owner_cik;type:varchar(10)"`
	OwnerName         string  `gorm:"type:text"`
	OwnerTitle        *string `gorm:"type:text"`
	IsOfficer         bool    `gorm:"not null;default:false"`
	IsDirector        bool    `gorm:"not null;default:false"`
	IsTenPercentOwner bool    `gorm:"not null;default:false"`

	// Buy side rollup. Derivative legs are excluded from both sides.
	HasBuy                  bool             `gorm:"not null;default:false"`
	BuyTradeDate            *string          `gorm:"type:varchar(10)"`
	BuyLastTxDate           *string          `gorm:"type:varchar(10)"`
	BuyShares               *decimal.Decimal `gorm:"type:numeric(30,10)"`
	BuyDollars              *decimal.Decimal `gorm:"type:numeric(30,10)"`
	BuyVWAP                 *float64         `gorm:"column:buy_vwap;type:double precision"`
	BuyPricedShares         *decimal.Decimal `gorm:"type:numeric(30,10)"`
	BuyUnpricedShares       *decimal.Decimal `gorm:"type:numeric(30,10)"`
	BuyVWAPIsPartial        bool             `gorm:"column:buy_vwap_is_partial;not null;default:false"`
	BuySharesOwnedFollowing *decimal.Decimal `gorm:"type:numeric(30,10)"`
	BuyPctChangeShares      *float64         `gorm:"type:double precision"`
	BuyMissingReason        *string          `gorm:"type:text"`
	BuyTxCount              int              `gorm:"not null;default:0"`

	// Sell side rollup, same shape.
	HasSell                  bool             `gorm:"not null;default:false"`
	SellTradeDate            *string          `gorm:"type:varchar(10)"`
	SellLastTxDate           *string          `gorm:"type:varchar(10)"`
	SellShares               *decimal.Decimal `gorm:"type:numeric(30,10)"`
	SellDollars              *decimal.Decimal `gorm:"type:numeric(30,10)"`
	SellVWAP                 *float64         `gorm:"column:sell_vwap;type:double precision"`
	SellPricedShares         *decimal.Decimal `gorm:"type:numeric(30,10)"`
	SellUnpricedShares       *decimal.Decimal `gorm:"type:numeric(30,10)"`
	SellVWAPIsPartial        bool             `gorm:"column:sell_vwap_is_partial;not null;default:false"`
	SellSharesOwnedFollowing *decimal.Decimal `gorm:"type:numeric(30,10)"`
	SellPctChangeShares      *float64         `gorm:"type:double precision"`
	SellMissingReason        *string          `gorm:"type:text"`
	SellTxCount              int              `gorm:"not null;default:0"`

	NonOpenMarketRowCount int `gorm:"not null;default:0"`
	DerivativeRowCount    int `gorm:"not null;default:0"`

	// Trend snapshot anchored at the event trade date.
	TrendAnchorDate        *string  `gorm:"type:varchar(10)"`
	TrendAnchorClose       *float64 `gorm:"type:double precision"`
	TrendRet20             *float64 `gorm:"column:trend_ret_20;type:double precision"`
	TrendRet60             *float64 `gorm:"column:trend_ret_60;type:double precision"`
	TrendDist52wHigh       *float64 `gorm:"column:trend_dist_52w_high;type:double precision"`
	TrendDist52wLow        *float64 `gorm:"column:trend_dist_52w_low;type:double precision"`
	TrendAboveSMA50        *bool    `gorm:"column:trend_above_sma_50"`
	TrendAboveSMA200       *bool    `gorm:"column:trend_above_sma_200"`
	TrendMissingReason     *string  `gorm:"type:text"`

	// Cluster membership flags and ids, per side.
	BuyClusterFlag  bool    `gorm:"not null;default:false"`
	BuyClusterID    *string `gorm:"type:varchar(80);index"`
	SellClusterFlag bool    `gorm:"not null;default:false"`
	SellClusterID   *string `gorm:"type:varchar(80);index"`

	// AI verdict, denormalized from the latest ai_outputs row.
	AIBuyRating     *float64   `gorm:"column:ai_buy_rating;type:double precision"`
	AISellRating    *float64   `gorm:"column:ai_sell_rating;type:double precision"`
	AIConfidence    *float64   `gorm:"column:ai_confidence;type:double precision"`
	AIModelID       *string    `gorm:"column:ai_model_id;type:varchar(80)"`
	AIPromptVersion *int       `gorm:"column:ai_prompt_version"`
	AIGeneratedAt   *time.Time `gorm:"column:ai_generated_at;type:timestamptz"`

	// Market cap snapshot carried across re-aggregation.
	MarketCapUSD       *decimal.Decimal `gorm:"column:market_cap_usd;type:numeric(30,2)"`
	MarketCapBucket    *string          `gorm:"type:varchar(10)"`
	MarketCapUpdatedAt *time.Time       `gorm:"type:timestamptz"`

	ParseVersion int `gorm:"not null;default:1"`

	EventComputedAt    time.Time  `gorm:"type:timestamptz;not null"`
	TrendComputedAt    *time.Time `gorm:"type:timestamptz"`
	OutcomesComputedAt *time.Time `gorm:"type:timestamptz"`
	StatsComputedAt    *time.Time `gorm:"type:timestamptz"`
	ClusterComputedAt  *time.Time `gorm:"type:timestamptz"`
	AIComputedAt       *time.Time `gorm:"column:ai_computed_at;type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (InsiderEvent) TableName() string {
	return "insider_events"
}

// Sides on which an event can be scored.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// BestRating returns the higher of the AI buy and sell ratings, or nil when
// the event has no AI verdict yet.
func (e *InsiderEvent) BestRating() *float64 {
	switch {
	case e.AIBuyRating == nil:
		return e.AISellRating
	case e.AISellRating == nil:
		return e.AIBuyRating
	case *e.AISellRating > *e.AIBuyRating:
		return e.AISellRating
	default:
		return e.AIBuyRating
	}
}
