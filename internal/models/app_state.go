package models

import "time"

// AppState is a small key/value table for operational markers, like the
// resolved benchmark symbol or the last current-feed poll cursor.
type AppState struct {
	Key       string    `gorm:"type:varchar(80);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AppState) TableName() string {
	return "app_state"
}

// Well-known app state keys.
const (
	StateBenchmarkSymbol = "benchmark_symbol_resolved"
	StateCurrentFeedSeen = "current_feed_last_seen"
)
