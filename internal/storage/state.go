package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BalanceSnapshot is the live engine's cached balance at a point in
// time, persisted so a restart can seed its cache instead of starting
// blind until the first sync tick.
type BalanceSnapshot struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	BalanceRaw int64
	CreatedAt time.Time
}

// PositionSnapshot is one market's cached position at a point in
// time.
type PositionSnapshot struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	MarketHash uint32 `gorm:"index"`
	Ticker     string
	Size       int64
	CreatedAt  time.Time
}

// RunningAlgo records a scheduler entry so a restart can at least log
// what was in flight; the core never re-hydrates algorithm state from
// this, it is diagnostic only.
type RunningAlgo struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	AlgoType    string
	MarketHash  uint32 `gorm:"index"`
	SubmittedAt time.Time
}

// StateStore is restart-recovery plumbing for the live engine's
// operational caches, backed by gorm with either sqlite or postgres
// selected by the DSN scheme. It is deliberately not in the tick-path
// hot loop: callers take snapshots (cmd/engine does so at shutdown),
// not per-fill.
type StateStore struct {
	db *gorm.DB
}

// OpenStateStore opens dsn, inferring postgres from a postgres(ql)://
// scheme and falling back to sqlite otherwise, then migrates its
// models.
func OpenStateStore(dsn string) (*StateStore, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("storage: state store connected (postgres)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("storage: state store connected (sqlite)")
	}

	if err := db.AutoMigrate(&BalanceSnapshot{}, &PositionSnapshot{}, &RunningAlgo{}); err != nil {
		return nil, err
	}
	return &StateStore{db: db}, nil
}

// SaveBalance records the current cached balance.
func (s *StateStore) SaveBalance(balanceRaw int64) error {
	return s.db.Create(&BalanceSnapshot{BalanceRaw: balanceRaw}).Error
}

// SavePositions replaces the recorded position snapshot with the
// given set.
func (s *StateStore) SavePositions(positions map[uint32]int64, tickers map[uint32]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&PositionSnapshot{}).Error; err != nil {
			return err
		}
		for hash, size := range positions {
			row := PositionSnapshot{MarketHash: hash, Ticker: tickers[hash], Size: size}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LatestBalance returns the most recently saved balance, or zero if
// none has been saved yet.
func (s *StateStore) LatestBalance() (int64, error) {
	var row BalanceSnapshot
	err := s.db.Order("id desc").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	return row.BalanceRaw, err
}

// LatestPositions returns the most recently saved position snapshot.
func (s *StateStore) LatestPositions() (map[uint32]int64, error) {
	var rows []PositionSnapshot
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint32]int64, len(rows))
	for _, r := range rows {
		out[r.MarketHash] = r.Size
	}
	return out, nil
}

// RecordRunningAlgo logs a submitted algorithm for restart diagnostics.
func (s *StateStore) RecordRunningAlgo(algoType string, marketHash uint32) error {
	return s.db.Create(&RunningAlgo{AlgoType: algoType, MarketHash: marketHash, SubmittedAt: time.Now()}).Error
}

// Close releases the underlying connection.
func (s *StateStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
