package storage

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Optional trade persistence
// ═══════════════════════════════════════════════════════════════════════════════
//
// The JSONL audit logs are the source of truth; the database is a query
// convenience. A postgres:// DSN selects Postgres, anything else is treated
// as a sqlite file path, empty disables persistence entirely.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// TradeRecord is one fill
type TradeRecord struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	Symbol    string          `gorm:"index"`
	Direction string
	Action    string // OPEN, TP1, TP2, RUNNER_TP, STOP_LOSS, TRAILING_STOP
	Price     decimal.Decimal `gorm:"type:decimal(20,8)"`
	Size      decimal.Decimal `gorm:"type:decimal(20,8)"`
	PnL       decimal.Decimal `gorm:"type:decimal(20,8)"`
	CreatedAt time.Time
}

// PositionSummary is written once when a position fully closes
type PositionSummary struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"`
	Symbol     string          `gorm:"index"`
	Direction  string
	EntryPrice decimal.Decimal `gorm:"type:decimal(20,8)"`
	Size       decimal.Decimal `gorm:"type:decimal(20,8)"`
	FinalState string          // CLOSED or STOPPED
	TotalPnL   decimal.Decimal `gorm:"type:decimal(20,8)"`
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// New opens the store, or returns nil when dsn is empty (persistence off)
func New(dsn string) (*Database, error) {
	if dsn == "" {
		log.Warn().Msg("No storage DSN configured, running without persistence")
		return nil, nil
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&TradeRecord{}, &PositionSummary{}); err != nil {
		return nil, err
	}

	log.Info().Msg("💾 Database connected")
	return &Database{db: db}, nil
}

// SaveTrade persists one fill. Nil receiver is a no-op.
func (d *Database) SaveTrade(symbol string, direction types.Direction, action string, price, size, pnl decimal.Decimal) {
	if d == nil {
		return
	}
	rec := TradeRecord{
		Symbol:    symbol,
		Direction: string(direction),
		Action:    action,
		Price:     price,
		Size:      size,
		PnL:       pnl,
	}
	if err := d.db.Create(&rec).Error; err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("Failed to persist trade")
	}
}

// SavePositionSummary persists a closed position. Nil receiver is a no-op.
func (d *Database) SavePositionSummary(pos *types.Position, totalPnL decimal.Decimal) {
	if d == nil || pos == nil {
		return
	}
	rec := PositionSummary{
		Symbol:     pos.Symbol,
		Direction:  string(pos.Direction),
		EntryPrice: pos.EntryPrice,
		Size:       pos.Size,
		FinalState: string(pos.State),
		TotalPnL:   totalPnL,
		OpenedAt:   pos.EntryTime,
		ClosedAt:   time.Now().UTC(),
	}
	if err := d.db.Create(&rec).Error; err != nil {
		log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Failed to persist position summary")
	}
}
