package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockHistory(t *testing.T, driver string) (*History, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHistory(db, driver), mock
}

func TestHistoryRecord(t *testing.T) {
	h, mock := newMockHistory(t, "sqlite")

	mock.ExpectExec("INSERT INTO deliveries").
		WithArgs("slack", "#general", 42, true, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := h.Record("slack", "#general", 42, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRecordFailure(t *testing.T) {
	h, mock := newMockHistory(t, "sqlite")

	mock.ExpectExec("INSERT INTO deliveries").
		WithArgs("slack", "#general", 10, false, "channel_not_found", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := h.Record("slack", "#general", 10, fmt.Errorf("channel_not_found"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRecent(t *testing.T) {
	h, mock := newMockHistory(t, "sqlite")

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "platform", "destination", "size", "ok", "error", "sent_at"}).
		AddRow(2, "slack", "#ops", 10, true, "", now).
		AddRow(1, "telegram", "@chan", 20, false, "boom", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, platform, destination, size, ok, error, sent_at FROM deliveries").
		WithArgs(5).
		WillReturnRows(rows)

	entries, err := h.Recent(5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "slack", entries[0].Platform)
	assert.True(t, entries[0].OK)
	assert.Equal(t, "boom", entries[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRecentDefaultsCount(t *testing.T) {
	h, mock := newMockHistory(t, "sqlite")

	mock.ExpectQuery("SELECT id, platform, destination, size, ok, error, sent_at FROM deliveries").
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "platform", "destination", "size", "ok", "error", "sent_at"}))

	_, err := h.Recent(0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRebind(t *testing.T) {
	sqlite := NewHistory(nil, "sqlite")
	assert.Equal(t, "SELECT ? WHERE x = ?", sqlite.rebind("SELECT ? WHERE x = ?"))

	pg := NewHistory(nil, "postgres")
	assert.Equal(t, "SELECT $1 WHERE x = $2", pg.rebind("SELECT ? WHERE x = ?"))
}

func TestOpenHistoryRejectsUnknownDriver(t *testing.T) {
	_, err := OpenHistory("oracle", "dsn")
	assert.Error(t, err)
}
