// Package store is the relational persistence layer: the `mints` and
// `stagnant_mints` tables behind the Market Engine and Reputation Analyzer,
// backed by Postgres (the schema leans on ON CONFLICT upserts and
// repeatable-read transactions).
package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"pumpsentinel/pkg/types"
)

// Store wraps a gorm connection pool over the mints/stagnant_mints tables.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and ensures both tables exist.
func Open(dsn string, maxOpenConns int) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}

	if err := db.AutoMigrate(&mintRow{}, &stagnantMintRow{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying gorm handle for the Reputation Analyzer's
// chunked, repeatable-read reads over stagnant_mints, rather than wrapping
// every possible query shape behind this package.
func (s *Store) DB() *gorm.DB { return s.db }

// UpsertMintMeta writes through a live mint's metadata. On a fresh mint_id
// this inserts the full row; on a duplicate Creation event it updates only
// name/symbol/owner/mint_sig, leaving accumulated price state untouched.
func (s *Store) UpsertMintMeta(ctx context.Context, m *types.MintState) error {
	row, err := mintRowFromState(m)
	if err != nil {
		return fmt.Errorf("marshal mint row: %w", err)
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mint_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "symbol", "owner", "mint_sig"}),
	}).Create(row).Error
}

// SaveLiveMint overwrites a live mint's full row, used by the Market
// Engine's swap write-through.
func (s *Store) SaveLiveMint(ctx context.Context, m *types.MintState) error {
	row, err := mintRowFromState(m)
	if err != nil {
		return fmt.Errorf("marshal mint row: %w", err)
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(row).Error
}

// RetireMint atomically moves a mint from live to retired: the insert into
// stagnant_mints (on-conflict-do-nothing, so a replayed retirement is
// idempotent) completes before the delete from mints, so a concurrent swap
// update can never observe the mint in neither table.
func (s *Store) RetireMint(ctx context.Context, r *types.RetiredMint) error {
	row, err := stagnantRowFromRetired(r)
	if err != nil {
		return fmt.Errorf("marshal stagnant row: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
			return fmt.Errorf("insert stagnant mint: %w", err)
		}
		if err := tx.Where("mint_id = ?", r.MintID).Delete(&mintRow{}).Error; err != nil {
			return fmt.Errorf("delete live mint: %w", err)
		}
		return nil
	})
}

// CountStagnantMints returns the total row count in stagnant_mints, used by
// the Reputation Analyzer to size its chunk loop.
func (s *Store) CountStagnantMints(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&stagnantMintRow{}).Count(&n).Error
	return n, err
}

// LoadStagnantChunk loads one page of retired mints ordered by mint_id, for
// use inside a caller-managed repeatable-read transaction (see
// internal/reputation).
func LoadStagnantChunk(tx *gorm.DB, offset, limit int) ([]*types.RetiredMint, error) {
	var rows []stagnantMintRow
	if err := tx.Order("mint_id").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load stagnant chunk: %w", err)
	}

	out := make([]*types.RetiredMint, 0, len(rows))
	for _, row := range rows {
		rm, err := retiredFromStagnantRow(row)
		if err != nil {
			return nil, fmt.Errorf("unmarshal stagnant row %s: %w", row.MintID, err)
		}
		out = append(out, rm)
	}
	return out, nil
}

func mustDecimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
