package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/trader-engine/internal/config"
	pkgstorage "github.com/jwebster45206/trader-engine/pkg/storage"
)

func openTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "trader.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteNPCRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveNPCs(ctx, sampleRecords()))
	recs, err := s.LoadNPCs(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "baker", recs[0].ID)
	assert.Equal(t, "smith", recs[1].ID)
	assert.Equal(t, []string{"eco give {player} {total_price}"}, recs[1].Commands)
	assert.InDelta(t, 10.0, recs[1].Location.X, 1e-9)

	require.NoError(t, s.SaveNPCs(ctx, nil))
	recs, err = s.LoadNPCs(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLiteAccountsRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	want := sampleAccounts(now)
	want = append(want, want[0])
	want[1].Player[0] = 0x22
	want[1].LastSell = time.Time{}
	want[1].CooldownUntil = time.Time{}

	require.NoError(t, s.SaveAccounts(ctx, want))
	got, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, want[0].Player, got[0].Player)
	assert.True(t, got[0].DailySold.Equal(decimal.RequireFromString("15.5")))
	assert.True(t, got[0].LifetimeSold.Equal(decimal.RequireFromString("120.25")))
	assert.True(t, got[0].LastSell.Equal(now))
	assert.True(t, got[0].CooldownUntil.Equal(now.Add(30*time.Second)))
	assert.True(t, got[1].LastSell.IsZero())
}

func TestSQLiteLastReset(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	date, err := s.LoadLastReset(ctx)
	require.NoError(t, err)
	assert.Empty(t, date)

	require.NoError(t, s.SaveLastReset(ctx, "2025-06-01"))
	require.NoError(t, s.SaveLastReset(ctx, "2025-06-02"))
	date, err = s.LoadLastReset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", date)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, rdb, err := Open(ctx, &config.Config{StorageBackend: config.BackendMemory}, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.IsType(t, &pkgstorage.MockStorage{}, s)

	s, rdb, err = Open(ctx, &config.Config{
		StorageBackend: config.BackendSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "x.db"),
	}, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.IsType(t, &SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	_, _, err = Open(ctx, &config.Config{StorageBackend: "bogus"}, quietLogger())
	assert.Error(t, err)
}

func TestSQLiteRemovedNPCs(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRemovedNPCs(ctx, []string{"smith", "baker"}))
	ids, err := s.LoadRemovedNPCs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"baker", "smith"}, ids)

	require.NoError(t, s.SaveRemovedNPCs(ctx, nil))
	ids, err = s.LoadRemovedNPCs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
