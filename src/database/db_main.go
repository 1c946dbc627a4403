package database

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cuanbot/src/model"
)

// MainDB is the trade-journal database connection. The journal is an audit
// trail only; the ledger file owns open risk, so a journal outage degrades
// to log warnings instead of stopping the engine.
var MainDB *gorm.DB

// InitMainDB opens the journal database and runs migrations. A DSN
// starting with "postgres" selects the postgres driver, anything else is
// treated as a sqlite file path. Call once at startup.
func InitMainDB() error {
	config := GetConfig()

	dialector := dialectorFor(config.JournalDSN)
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.WithField("dsn", config.JournalDSN).Info("[database] journal connection established")

	if err := MainDB.AutoMigrate(
		&model.TradeEvent{},
	); err != nil {
		return err
	}

	return nil
}

func dialectorFor(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}
