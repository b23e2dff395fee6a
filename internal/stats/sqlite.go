package stats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/math"
	_ "modernc.org/sqlite"
)

const defaultSQLitePath = "zapgate.db"

// SQLiteStore persists deposit records and aggregates in a local SQLite
// file. Single-connection mode keeps the driver from opening concurrent
// writers against the same file.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (and initializes) the store. Empty path falls back
// to zapgate.db in the working directory.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = defaultSQLitePath
	}

	dsn := path
	if !strings.HasPrefix(path, "file:") {
		// busy_timeout plus WAL keeps single-writer contention tolerable.
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stats database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	const schema = `
CREATE TABLE IF NOT EXISTS deposits (
	attempt_id TEXT PRIMARY KEY,
	caller TEXT NOT NULL,
	denom TEXT NOT NULL,
	amount_in TEXT NOT NULL,
	swapped TEXT NOT NULL,
	quote_received TEXT NOT NULL,
	liquidity_used TEXT NOT NULL,
	lp_minted TEXT NOT NULL,
	refunded TEXT NOT NULL,
	price_source TEXT NOT NULL,
	height INTEGER NOT NULL,
	settled_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS deposits_caller ON deposits(caller);

CREATE TABLE IF NOT EXISTS user_stats (
	caller TEXT PRIMARY KEY,
	deposit_count INTEGER NOT NULL,
	total_amount TEXT NOT NULL,
	total_lp_minted TEXT NOT NULL,
	last_deposit_at DATETIME NOT NULL
);`

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(schema)
	return err
}

// RecordDeposit inserts the record and upserts the caller's aggregate in
// one transaction.
func (s *SQLiteStore) RecordDeposit(ctx context.Context, rec DepositRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertDeposit = `
INSERT INTO deposits (attempt_id, caller, denom, amount_in, swapped, quote_received,
	liquidity_used, lp_minted, refunded, price_source, height, settled_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	if _, err := tx.ExecContext(ctx, insertDeposit,
		rec.AttemptID, rec.Caller, rec.Denom,
		rec.AmountIn.String(), rec.Swapped.String(), rec.QuoteReceived.String(),
		rec.LiquidityUsed.String(), rec.LPMinted.String(), rec.Refunded.String(),
		rec.PriceSource, rec.Height, rec.SettledAt.UTC(),
	); err != nil {
		return err
	}

	cur, err := userStatsTx(ctx, tx, rec.Caller)
	if err != nil {
		return err
	}
	cur.DepositCount++
	cur.TotalAmount = cur.TotalAmount.Add(rec.AmountIn)
	cur.TotalLPMinted = cur.TotalLPMinted.Add(rec.LPMinted)
	cur.LastDepositAt = rec.SettledAt.UTC()

	const upsertUser = `
INSERT INTO user_stats (caller, deposit_count, total_amount, total_lp_minted, last_deposit_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(caller) DO UPDATE SET
	deposit_count = excluded.deposit_count,
	total_amount = excluded.total_amount,
	total_lp_minted = excluded.total_lp_minted,
	last_deposit_at = excluded.last_deposit_at;`

	if _, err := tx.ExecContext(ctx, upsertUser,
		rec.Caller, cur.DepositCount, cur.TotalAmount.String(), cur.TotalLPMinted.String(), cur.LastDepositAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// User returns one caller's aggregate. Unknown callers get a zeroed row.
func (s *SQLiteStore) User(ctx context.Context, caller string) (UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
SELECT deposit_count, total_amount, total_lp_minted, last_deposit_at
FROM user_stats WHERE caller = ?;`

	st := UserStats{Caller: caller, TotalAmount: math.ZeroInt(), TotalLPMinted: math.ZeroInt()}
	var totalAmount, totalLP string
	err := s.db.QueryRowContext(ctx, q, caller).Scan(&st.DepositCount, &totalAmount, &totalLP, &st.LastDepositAt)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return UserStats{}, err
	}
	if st.TotalAmount, err = parseInt(totalAmount); err != nil {
		return UserStats{}, err
	}
	if st.TotalLPMinted, err = parseInt(totalLP); err != nil {
		return UserStats{}, err
	}
	return st, nil
}

// Protocol aggregates across all deposits.
func (s *SQLiteStore) Protocol(ctx context.Context) (ProtocolStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ProtocolStats{TotalAmount: math.ZeroInt(), TotalLPMinted: math.ZeroInt()}

	const counts = `
SELECT COUNT(*), COUNT(DISTINCT caller), COALESCE(MAX(settled_at), '0001-01-01T00:00:00Z')
FROM deposits;`
	var last time.Time
	if err := s.db.QueryRowContext(ctx, counts).Scan(&st.DepositCount, &st.UniqueUsers, &last); err != nil {
		return ProtocolStats{}, err
	}
	if st.DepositCount == 0 {
		return st, nil
	}
	st.LastDepositAt = last

	// Amounts are stored as decimal strings; sum them in Go to keep
	// arbitrary precision.
	rows, err := s.db.QueryContext(ctx, `SELECT total_amount, total_lp_minted FROM user_stats;`)
	if err != nil {
		return ProtocolStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var amount, lp string
		if err := rows.Scan(&amount, &lp); err != nil {
			return ProtocolStats{}, err
		}
		a, err := parseInt(amount)
		if err != nil {
			return ProtocolStats{}, err
		}
		l, err := parseInt(lp)
		if err != nil {
			return ProtocolStats{}, err
		}
		st.TotalAmount = st.TotalAmount.Add(a)
		st.TotalLPMinted = st.TotalLPMinted.Add(l)
	}
	if err := rows.Err(); err != nil {
		return ProtocolStats{}, err
	}
	return st, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func userStatsTx(ctx context.Context, tx *sql.Tx, caller string) (UserStats, error) {
	const q = `
SELECT deposit_count, total_amount, total_lp_minted, last_deposit_at
FROM user_stats WHERE caller = ?;`

	st := UserStats{Caller: caller, TotalAmount: math.ZeroInt(), TotalLPMinted: math.ZeroInt()}
	var totalAmount, totalLP string
	err := tx.QueryRowContext(ctx, q, caller).Scan(&st.DepositCount, &totalAmount, &totalLP, &st.LastDepositAt)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return UserStats{}, err
	}
	if st.TotalAmount, err = parseInt(totalAmount); err != nil {
		return UserStats{}, err
	}
	if st.TotalLPMinted, err = parseInt(totalLP); err != nil {
		return UserStats{}, err
	}
	return st, nil
}

func parseInt(s string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("malformed integer %q in stats store", s)
	}
	return v, nil
}
