package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/trader-engine/pkg/ledger"
	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/storage"
)

// SQLiteStorage implements the Storage interface on a local SQLite file.
type SQLiteStorage struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// OpenSQLite opens or creates a database at path and applies the schema.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStorage, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; the auto-saver is the only caller that writes
	conn.SetMaxOpenConns(1)

	s := &SQLiteStorage{conn: conn, logger: logger}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("SQLite storage opened", "path", path)
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS npcs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		record_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS removed_npcs (
		id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS accounts (
		player TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		daily_sold TEXT NOT NULL,
		daily_transactions INTEGER NOT NULL,
		lifetime_sold TEXT NOT NULL,
		lifetime_transactions INTEGER NOT NULL,
		last_sell INTEGER NOT NULL,
		best_sale TEXT NOT NULL,
		cooldown_until INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trader_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.conn.Close()
}

type npcRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Enabled    bool   `db:"enabled"`
	RecordJSON string `db:"record_json"`
}

// SaveNPCs writes all records (full replace).
func (s *SQLiteStorage) SaveNPCs(ctx context.Context, recs []npc.Record) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM npcs"); err != nil {
		return err
	}
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal npc %s: %w", rec.ID, err)
		}
		row := npcRow{ID: rec.ID, Name: rec.Name, Enabled: rec.Enabled, RecordJSON: string(data)}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO npcs (id, name, enabled, record_json) VALUES (:id, :name, :enabled, :record_json)`, row); err != nil {
			return fmt.Errorf("insert npc %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("NPCs saved", "count", len(recs))
	return nil
}

func (s *SQLiteStorage) LoadNPCs(ctx context.Context) ([]npc.Record, error) {
	var rows []npcRow
	if err := s.conn.SelectContext(ctx, &rows, "SELECT id, name, enabled, record_json FROM npcs ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load npcs: %w", err)
	}
	recs := make([]npc.Record, 0, len(rows))
	for _, row := range rows {
		var rec npc.Record
		if err := json.Unmarshal([]byte(row.RecordJSON), &rec); err != nil {
			s.logger.Warn("Skipping unreadable npc record", "npc_id", row.ID, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// SaveRemovedNPCs writes the removed id set (full replace).
func (s *SQLiteStorage) SaveRemovedNPCs(ctx context.Context, ids []string) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM removed_npcs"); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "INSERT INTO removed_npcs (id) VALUES (?)", id); err != nil {
			return fmt.Errorf("insert removed npc %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStorage) LoadRemovedNPCs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.conn.SelectContext(ctx, &ids, "SELECT id FROM removed_npcs ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load removed npcs: %w", err)
	}
	return ids, nil
}

// accountRow stores times as unix nanoseconds, zero for unset.
type accountRow struct {
	Player               uuid.UUID       `db:"player"`
	Date                 string          `db:"date"`
	DailySold            decimal.Decimal `db:"daily_sold"`
	DailyTransactions    int             `db:"daily_transactions"`
	LifetimeSold         decimal.Decimal `db:"lifetime_sold"`
	LifetimeTransactions int             `db:"lifetime_transactions"`
	LastSell             int64           `db:"last_sell"`
	BestSale             decimal.Decimal `db:"best_sale"`
	CooldownUntil        int64           `db:"cooldown_until"`
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func rowFromSnapshot(s ledger.Snapshot) accountRow {
	return accountRow{
		Player:               s.Player,
		Date:                 s.Date,
		DailySold:            s.DailySold,
		DailyTransactions:    s.DailyTransactions,
		LifetimeSold:         s.LifetimeSold,
		LifetimeTransactions: s.LifetimeTransactions,
		LastSell:             toNanos(s.LastSell),
		BestSale:             s.BestSale,
		CooldownUntil:        toNanos(s.CooldownUntil),
	}
}

func (r accountRow) snapshot() ledger.Snapshot {
	return ledger.Snapshot{
		Player:               r.Player,
		Date:                 r.Date,
		DailySold:            r.DailySold,
		DailyTransactions:    r.DailyTransactions,
		LifetimeSold:         r.LifetimeSold,
		LifetimeTransactions: r.LifetimeTransactions,
		LastSell:             fromNanos(r.LastSell),
		BestSale:             r.BestSale,
		CooldownUntil:        fromNanos(r.CooldownUntil),
	}
}

// SaveAccounts writes all accounts (full replace).
func (s *SQLiteStorage) SaveAccounts(ctx context.Context, snaps []ledger.Snapshot) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return err
	}
	for _, snap := range snaps {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO accounts (player, date, daily_sold, daily_transactions, lifetime_sold,
				lifetime_transactions, last_sell, best_sale, cooldown_until)
			VALUES (:player, :date, :daily_sold, :daily_transactions, :lifetime_sold,
				:lifetime_transactions, :last_sell, :best_sale, :cooldown_until)`,
			rowFromSnapshot(snap)); err != nil {
			return fmt.Errorf("insert account %s: %w", snap.Player, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("Accounts saved", "count", len(snaps))
	return nil
}

func (s *SQLiteStorage) LoadAccounts(ctx context.Context) ([]ledger.Snapshot, error) {
	var rows []accountRow
	if err := s.conn.SelectContext(ctx, &rows, "SELECT * FROM accounts ORDER BY player"); err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	out := make([]ledger.Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.snapshot())
	}
	return out, nil
}

func (s *SQLiteStorage) SaveLastReset(ctx context.Context, date string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO trader_meta (key, value) VALUES ('last_reset', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, date)
	if err != nil {
		return fmt.Errorf("save last reset: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadLastReset(ctx context.Context) (string, error) {
	var date string
	err := s.conn.GetContext(ctx, &date, "SELECT value FROM trader_meta WHERE key = 'last_reset'")
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load last reset: %w", err)
	}
	return date, nil
}
