// Package governor enforces the per-day flow cap over a persisted ledger.
package governor

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"CorridorBot/internal/model"
)

// DayState is the persisted record for one UTC calendar day: the balances
// seen on the first cycle of the day and the flow executed since. Rows are
// never deleted; history accumulates one row per day.
type DayState struct {
	Day       string
	BaseGC    decimal.Decimal
	BaseUSDC  decimal.Decimal
	BaseUSDT  decimal.Decimal
	SoldGC    decimal.Decimal
	SpentUSDC decimal.Decimal
	SpentUSDT decimal.Decimal
}

// Store persists day states and cycle history in SQLite. Amounts are stored
// as decimal strings to avoid float drift across restarts.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (or creates) the database and runs migrations.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily (
			day        TEXT PRIMARY KEY,
			base_gc    TEXT NOT NULL,
			base_usdc  TEXT NOT NULL,
			base_usdt  TEXT NOT NULL,
			sold_gc    TEXT NOT NULL DEFAULT '0',
			spent_usdc TEXT NOT NULL DEFAULT '0',
			spent_usdt TEXT NOT NULL DEFAULT '0'
		)`,

		`CREATE TABLE IF NOT EXISTS cycles (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			status     TEXT,
			action     TEXT,
			reason     TEXT,
			spot       TEXT,
			robust     TEXT,
			sol_usdc   TEXT,
			band_lower TEXT,
			band_upper TEXT,
			size_gc    TEXT,
			size_usdc  TEXT,
			size_usdt  TEXT,
			signatures TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// DayKey formats the UTC calendar day key.
func DayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// GetOrCreate loads the day's state, inserting a fresh row seeded from the
// given balances if the day has not been seen yet. Idempotent: an existing
// row is reused unchanged, regardless of the balances observed now.
func (s *Store) GetOrCreate(day string, bals model.Balances) (DayState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// INSERT OR IGNORE keeps the first baseline of the day authoritative.
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO daily (day, base_gc, base_usdc, base_usdt) VALUES (?,?,?,?)`,
		day, bals.TreasuryGC.String(), bals.VaultUSDC.String(), bals.VaultUSDT.String(),
	)
	if err != nil {
		return DayState{}, fmt.Errorf("insert day state: %w", err)
	}
	return s.load(day)
}

// Get loads the day's state without creating it.
func (s *Store) Get(day string) (DayState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(day)
}

// ErrNoDayState is returned by Get when the day has no row yet.
var ErrNoDayState = errors.New("no day state")

func (s *Store) load(day string) (DayState, error) {
	row := s.db.QueryRow(
		`SELECT day, base_gc, base_usdc, base_usdt, sold_gc, spent_usdc, spent_usdt
		 FROM daily WHERE day=?`, day)

	var ds DayState
	var baseGC, baseUSDC, baseUSDT, soldGC, spentUSDC, spentUSDT string
	if err := row.Scan(&ds.Day, &baseGC, &baseUSDC, &baseUSDT, &soldGC, &spentUSDC, &spentUSDT); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DayState{}, ErrNoDayState
		}
		return DayState{}, fmt.Errorf("load day state: %w", err)
	}
	for dst, src := range map[*decimal.Decimal]string{
		&ds.BaseGC: baseGC, &ds.BaseUSDC: baseUSDC, &ds.BaseUSDT: baseUSDT,
		&ds.SoldGC: soldGC, &ds.SpentUSDC: spentUSDC, &ds.SpentUSDT: spentUSDT,
	} {
		d, err := decimal.NewFromString(src)
		if err != nil {
			return DayState{}, fmt.Errorf("corrupt day state %s: %w", ds.Day, err)
		}
		*dst = d
	}
	return ds, nil
}

// AddFlow adds executed sizes to the day's cumulative counters. Counters are
// additive only; they reset solely by day rollover creating a fresh row.
func (s *Store) AddFlow(day string, dec model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.load(day)
	if err != nil {
		return err
	}
	switch dec.Action {
	case model.ActionSell:
		ds.SoldGC = ds.SoldGC.Add(dec.SizeGC)
	case model.ActionBuy:
		ds.SpentUSDC = ds.SpentUSDC.Add(dec.SizeUSDC)
		ds.SpentUSDT = ds.SpentUSDT.Add(dec.SizeUSDT)
	default:
		return nil
	}
	_, err = s.db.Exec(
		`UPDATE daily SET sold_gc=?, spent_usdc=?, spent_usdt=? WHERE day=?`,
		ds.SoldGC.String(), ds.SpentUSDC.String(), ds.SpentUSDT.String(), day,
	)
	if err != nil {
		return fmt.Errorf("update day counters: %w", err)
	}
	return nil
}

// RecordCycle appends one cycle outcome to the history table.
func (s *Store) RecordCycle(res model.CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason := res.Reason
	if res.Err != nil {
		reason = res.Err.Error()
	}
	_, err := s.db.Exec(
		`INSERT INTO cycles
		 (timestamp, status, action, reason, spot, robust, sol_usdc,
		  band_lower, band_upper, size_gc, size_usdc, size_usdt, signatures)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), string(res.Status), string(res.Decision.Action), reason,
		res.Spot.String(), res.Robust.String(), res.SolPerUSDC.String(),
		res.Decision.Band.Lower.String(), res.Decision.Band.Upper.String(),
		res.Decision.SizeGC.String(), res.Decision.SizeUSDC.String(), res.Decision.SizeUSDT.String(),
		strings.Join(res.Signatures, ","),
	)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
