package db

import (
	"insiderlens/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Job{},
		&models.Issuer{},
		&models.Filing{},
		&models.FilingDocument{},
		&models.Form4Row{},
		&models.InsiderEvent{},
		&models.EventOutcome{},
		&models.InsiderStat{},
		&models.AIOutput{},
		&models.Cluster{},
		&models.ClusterMember{},
		&models.IssuerPrice{},
		&models.BenchmarkPrice{},
		&models.MarketCapCache{},
		&models.BackfillItem{},
		&models.AppState{},
	)
}
