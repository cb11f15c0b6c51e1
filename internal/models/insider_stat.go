package models

import "time"

// InsiderStat is the track record attached to one event side: the owner's
// win rate and average excess return over events resolved strictly before
// that event's trade date. The event's own outcome never contributes, so a
// stat read for an event reflects only what was knowable when it was filed.
// Rebuilt wholesale whenever any contributing outcome changes.
type InsiderStat struct {
	IssuerCIK       string `gorm:"column:issuer_cik;type:varchar(10);primaryKey"`
	OwnerKey        string `gorm:"type:varchar(120);primaryKey"`
	AccessionNumber string `gorm:"type:varchar(25);primaryKey"`
	Side            string `gorm:"type:varchar(4);primaryKey"`

	// AsOfDate is the cutoff the stat was computed against: the event's
	// trade date, falling back to its filing date.
	AsOfDate string `gorm:"type:varchar(10);not null"`

	N60       int      `gorm:"column:n_60;not null;default:0"`
	WinRate60 *float64 `gorm:"column:win_rate_60;type:double precision"`
	AvgExc60  *float64 `gorm:"column:avg_excess_return_60;type:double precision"`

	N180       int      `gorm:"column:n_180;not null;default:0"`
	WinRate180 *float64 `gorm:"column:win_rate_180;type:double precision"`
	AvgExc180  *float64 `gorm:"column:avg_excess_return_180;type:double precision"`

	StatsVersion int       `gorm:"not null;default:1"`
	ComputedAt   time.Time `gorm:"type:timestamptz;not null"`
}

func (InsiderStat) TableName() string {
	return "insider_issuer_stats"
}
