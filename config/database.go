package config

import (
	"github.com/yeremiapane/mozoqr/database"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the configured database. SQL statement logging is only
// enabled outside production.
func InitDB(cfg Config) (*gorm.DB, error) {
	level := logger.Warn
	if !cfg.IsProduction() && cfg.LogLevel == "debug" {
		level = logger.Info
	}
	return database.Open(cfg.DBDriver, cfg.DBDSN, level)
}
