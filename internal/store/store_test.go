// DB-layer tests run against sqlmock wired into a gorm.DB via the driver's
// Conn option, with expectations set through mock.ExpectBegin/ExpectExec/
// ExpectCommit and asserted with mock.ExpectationsWereMet.
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pumpsentinel/pkg/types"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return &Store{db: gormDB}, mock
}

func TestRetireMint_InsertBeforeDelete(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "stagnant_mints"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`DELETE FROM "mints"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	retired := &types.RetiredMint{
		MintID:  "mint1",
		Name:    "Test",
		Creator: "creatorA",
		FinalOHLC: types.OHLC{
			Open: decimal.NewFromFloat(1e-8), High: decimal.NewFromFloat(7e-8),
			Low: decimal.NewFromFloat(1e-8), Close: decimal.NewFromFloat(7e-8),
		},
	}

	if err := s.RetireMint(context.Background(), retired); err != nil {
		t.Fatalf("RetireMint: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpsertMintMeta_OnConflictUpdatesMetaOnly(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "mints" .*ON CONFLICT \("mint_id"\) DO UPDATE SET "name"="excluded"\."name","symbol"="excluded"\."symbol","owner"="excluded"\."owner","mint_sig"="excluded"\."mint_sig"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	state := types.NewMintState(types.CreationEvent{
		Mint: "mint1", Name: "Test", Symbol: "TST", User: "creatorA",
		Timestamp: time.Now(),
	})

	if err := s.UpsertMintMeta(context.Background(), state); err != nil {
		t.Fatalf("UpsertMintMeta: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMintRowRoundTrip(t *testing.T) {
	t.Parallel()

	rm := &types.RetiredMint{
		MintID:       "mint1",
		Name:         "Test",
		Symbol:       "TST",
		Creator:      "creatorA",
		Holders:      map[string]*types.Holder{"w1": {Balance: decimal.NewFromInt(10)}},
		PriceHistory: []types.HistoryEntry{{Key: "1700000000.000", Price: decimal.NewFromFloat(1e-8)}},
		TxCounts:     types.TxCounts{Swaps: 3, Buys: 2, Sells: 1},
		Volume:       map[string]types.VolumeBucket{"30s": {Swaps: 3, Buys: 2, Sells: 1}},
		FinalOHLC: types.OHLC{
			Open: decimal.NewFromFloat(1e-8), High: decimal.NewFromFloat(7e-8),
			Low: decimal.NewFromFloat(1e-8), Close: decimal.NewFromFloat(7e-8),
		},
		MintSig:      "sig1",
		BondingCurve: "curve1",
	}

	row, err := stagnantRowFromRetired(rm)
	if err != nil {
		t.Fatalf("stagnantRowFromRetired: %v", err)
	}

	back, err := retiredFromStagnantRow(*row)
	if err != nil {
		t.Fatalf("retiredFromStagnantRow: %v", err)
	}

	if back.MintID != rm.MintID || back.Creator != rm.Creator {
		t.Errorf("round trip mismatch: got %+v", back)
	}
	if len(back.PriceHistory) != 1 || back.PriceHistory[0].Key != "1700000000.000" {
		t.Errorf("price history not preserved: %+v", back.PriceHistory)
	}
	if back.TxCounts.Swaps != 3 {
		t.Errorf("tx counts not preserved: %+v", back.TxCounts)
	}
}

func TestTableNames(t *testing.T) {
	t.Parallel()
	if (mintRow{}).TableName() != "mints" {
		t.Errorf("mintRow.TableName() = %q, want mints", (mintRow{}).TableName())
	}
	if (stagnantMintRow{}).TableName() != "stagnant_mints" {
		t.Errorf("stagnantMintRow.TableName() = %q, want stagnant_mints", (stagnantMintRow{}).TableName())
	}
}
