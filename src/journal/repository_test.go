package journal_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cuanbot/src/journal"
	"cuanbot/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupDBMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Info),
	})
	require.NoError(t, err)

	return gormDB, mock
}

func TestRecord_InsertsEvent(t *testing.T) {
	gormDB, mock := setupDBMock(t)
	repo := (&journal.Repository{}).WithDB(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "trade_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	event := &model.TradeEvent{
		Pair:       "DOGE/IDR",
		Event:      model.TradeEventClose,
		Reason:     "trailing-stop",
		Price:      d("199"),
		Amount:     d("5"),
		PnlPercent: d("99"),
		OrderRef:   "cuan-abc",
	}
	err := repo.Record(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, uint(7), event.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_PropagatesError(t *testing.T) {
	gormDB, mock := setupDBMock(t)
	repo := (&journal.Repository{}).WithDB(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "trade_events"`)).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.Record(context.Background(), &model.TradeEvent{Pair: "DOGE/IDR", Event: model.TradeEventOpen})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent_OrdersNewestFirst(t *testing.T) {
	gormDB, mock := setupDBMock(t)
	repo := (&journal.Repository{}).WithDB(gormDB)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "pair", "event", "reason", "price", "amount", "pnl_percent", "order_ref", "created_at"}).
		AddRow(2, "DOGE/IDR", "close", "stop-loss", "94", "10", "-6", "cuan-2", now).
		AddRow(1, "DOGE/IDR", "open", "", "100", "10", "0", "cuan-1", now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trade_events" ORDER BY id DESC LIMIT`)).
		WillReturnRows(rows)

	events, err := repo.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint(2), events[0].ID)
	require.Equal(t, model.TradeEventClose, events[0].Event)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentByPair_Filters(t *testing.T) {
	gormDB, mock := setupDBMock(t)
	repo := (&journal.Repository{}).WithDB(gormDB)

	rows := sqlmock.NewRows([]string{"id", "pair", "event"}).
		AddRow(5, "SOL/IDR", "tp1")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trade_events" WHERE pair = `)).
		WithArgs("SOL/IDR", 20).
		WillReturnRows(rows)

	events, err := repo.RecentByPair(context.Background(), "SOL/IDR", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "SOL/IDR", events[0].Pair)
	require.NoError(t, mock.ExpectationsWereMet())
}
