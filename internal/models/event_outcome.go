package models

import "time"

// EventOutcome holds realized forward returns for one scored side of an
// event, measured in trading days from the anchor. Sell-side returns are
// sign-flipped so that a positive value always means "the insider was right".
type EventOutcome struct {
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);primaryKey"`
	OwnerKey        string `gorm:"type:varchar(120);primaryKey"`
	AccessionNumber string `gorm:"type:varchar(25);primaryKey"`
	Side            string `gorm:"type:varchar(4);primaryKey"`

	TradeDate *string `gorm:"type:varchar(10);index"`

	AnchorDate *string `gorm:"type:varchar(10)"`
	// P0 is the entry price the returns are measured from: the side VWAP.
	P0 *float64 `gorm:"column:p0;type:double precision"`

	Date60          *string  `gorm:"column:date_60;type:varchar(10)"`
	Price60         *float64 `gorm:"column:price_60;type:double precision"`
	Return60        *float64 `gorm:"column:return_60;type:double precision"`
	MissingReason60 *string  `gorm:"column:missing_reason_60;type:text"`

	Date180          *string  `gorm:"column:date_180;type:varchar(10)"`
	Price180         *float64 `gorm:"column:price_180;type:double precision"`
	Return180        *float64 `gorm:"column:return_180;type:double precision"`
	MissingReason180 *string  `gorm:"column:missing_reason_180;type:text"`

	BenchSymbol           *string  `gorm:"type:varchar(12)"`
	BenchReturn60         *float64 `gorm:"column:bench_return_60;type:double precision"`
	BenchMissingReason60  *string  `gorm:"column:bench_missing_reason_60;type:text"`
	BenchReturn180        *float64 `gorm:"column:bench_return_180;type:double precision"`
	BenchMissingReason180 *string  `gorm:"column:bench_missing_reason_180;type:text"`

	ExcessReturn60  *float64 `gorm:"column:excess_return_60;type:double precision"`
	ExcessReturn180 *float64 `gorm:"column:excess_return_180;type:double precision"`

	OutcomesVersion int       `gorm:"not null;default:1"`
	ComputedAt      time.Time `gorm:"type:timestamptz;not null"`
}

func (EventOutcome) TableName() string {
	return "event_outcomes"
}
