// Package storage persists executed legs and settlement outcomes for
// reporting. The trading core never reads it back; cycle state is
// rebuilt in memory every period.
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/hedgebot/types"
)

type Database struct {
	db *gorm.DB
}

// Leg is one executed buy of an outcome token
type Leg struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	ConditionID     string `gorm:"index"`
	PeriodTimestamp int64  `gorm:"index"`
	Market          string
	Side            string
	TokenID         string
	Shares          decimal.Decimal `gorm:"type:decimal(20,6)"`
	Price           decimal.Decimal `gorm:"type:decimal(10,6)"`
	Simulated       bool
	CreatedAt       time.Time
}

// Settlement is the resolved outcome of one market-period
type Settlement struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	ConditionID     string `gorm:"index"`
	PeriodTimestamp int64
	WinningSide     string
	ExpectedProfit  decimal.Decimal `gorm:"type:decimal(20,6)"`
	ActualProfit    decimal.Decimal `gorm:"type:decimal(20,6)"`
	CreatedAt       time.Time
}

// New opens the trade history store. A postgres:// URL selects
// PostgreSQL, anything else is treated as a SQLite file path. An empty
// path disables persistence: every write becomes a no-op.
func New(dbPath string) (*Database, error) {
	if dbPath == "" {
		log.Info().Msg("Database disabled")
		return &Database{}, nil
	}

	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&Leg{}, &Settlement{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// LogLeg records one executed buy
func (d *Database) LogLeg(conditionID string, period int64, market string, side types.Side, tokenID string, shares, price decimal.Decimal, simulated bool) error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Create(&Leg{
		ConditionID:     conditionID,
		PeriodTimestamp: period,
		Market:          market,
		Side:            string(side),
		TokenID:         tokenID,
		Shares:          shares,
		Price:           price,
		Simulated:       simulated,
	}).Error
}

// LogSettlement records a resolved market-period
func (d *Database) LogSettlement(conditionID string, period int64, winningSide string, expected, actual decimal.Decimal) error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Create(&Settlement{
		ConditionID:     conditionID,
		PeriodTimestamp: period,
		WinningSide:     winningSide,
		ExpectedProfit:  expected,
		ActualProfit:    actual,
	}).Error
}

// RecentLegs returns the latest executed legs, newest first
func (d *Database) RecentLegs(limit int) ([]Leg, error) {
	if d == nil || d.db == nil {
		return nil, nil
	}
	var legs []Leg
	err := d.db.Order("created_at DESC").Limit(limit).Find(&legs).Error
	return legs, err
}

// SettledProfit sums the actual profit over all recorded settlements
func (d *Database) SettledProfit() (decimal.Decimal, error) {
	if d == nil || d.db == nil {
		return decimal.Zero, nil
	}
	var settlements []Settlement
	if err := d.db.Find(&settlements).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, s := range settlements {
		total = total.Add(s.ActualProfit)
	}
	return total, nil
}
