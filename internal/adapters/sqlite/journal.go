package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements the ports.TradeJournal interface using SQLite.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal creates a new SQLite journal instance.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trade_journal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		err = fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at %q: %w", dbPath, err)
	}

	// The Go driver benefits from a single connection; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}
	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	cfg.Logger.Info(context.Background(), "SQLite trade journal ready", map[string]interface{}{"path": dbPath})
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trade_records (
		id TEXT PRIMARY KEY,
		ts TIMESTAMP NOT NULL,
		action TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		pnl REAL DEFAULT NULL,
		pnl_pct REAL DEFAULT NULL,
		reason TEXT DEFAULT NULL,
		rationale TEXT DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_records_symbol_ts ON trade_records (symbol, ts);
	CREATE INDEX IF NOT EXISTS idx_trade_records_ts ON trade_records (ts);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Append records one executed trade. Records are immutable; there is no
// update path on this table by design of the schema, only inserts.
func (j *Journal) Append(ctx context.Context, rec *domain.TradeRecord) error {
	const query = `
	INSERT INTO trade_records (id, ts, action, symbol, quantity, price, pnl, pnl_pct, reason, rationale)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var pnl, pnlPct sql.NullFloat64
	if rec.PnL != nil {
		pnl = sql.NullFloat64{Float64: *rec.PnL, Valid: true}
	}
	if rec.PnLPct != nil {
		pnlPct = sql.NullFloat64{Float64: *rec.PnLPct, Valid: true}
	}
	var reason sql.NullString
	if rec.Reason != "" {
		reason = sql.NullString{String: string(rec.Reason), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp, string(rec.Action), rec.Symbol, rec.Quantity, rec.Price,
		pnl, pnlPct, reason, rec.Rationale)
	if err != nil {
		return fmt.Errorf("failed to insert trade record %s: %w", rec.ID, err)
	}
	j.logger.Debug(ctx, "Trade record journaled", map[string]interface{}{"id": rec.ID, "symbol": rec.Symbol, "action": rec.Action})
	return nil
}

// RecentBySymbol retrieves the most recent trades for a symbol, newest first.
func (j *Journal) RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeRecord, error) {
	const query = `
	SELECT id, ts, action, symbol, quantity, price, pnl, pnl_pct, reason, COALESCE(rationale, '')
	FROM trade_records
	WHERE symbol = ? ORDER BY ts DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent trades for %s: %v", ports.ErrQueryFailed, symbol, err)
	}
	defer rows.Close()

	records := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		rec, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan trade record: %v", ports.ErrQueryFailed, err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate trade records: %v", ports.ErrQueryFailed, err)
	}
	return records, nil
}

// All retrieves every journaled trade, oldest first. Used by reporting tools.
func (j *Journal) All(ctx context.Context) ([]*domain.TradeRecord, error) {
	const query = `
	SELECT id, ts, action, symbol, quantity, price, pnl, pnl_pct, reason, COALESCE(rationale, '')
	FROM trade_records ORDER BY ts ASC`

	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: all trades: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	records := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		rec, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan trade record: %v", ports.ErrQueryFailed, err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate trade records: %v", ports.ErrQueryFailed, err)
	}
	return records, nil
}

// CountToday counts trades recorded on the current calendar day.
func (j *Journal) CountToday(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM trade_records WHERE date(ts) = date('now', 'localtime')`
	var count int
	if err := j.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count today's trades: %v", ports.ErrQueryFailed, err)
	}
	return count, nil
}

// TotalRealizedPnL sums realized P&L over all closing records.
func (j *Journal) TotalRealizedPnL(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(pnl), 0) FROM trade_records WHERE pnl IS NOT NULL`
	var total float64
	if err := j.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: total realized pnl: %v", ports.ErrQueryFailed, err)
	}
	return total, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTradeRecord(s scanner) (*domain.TradeRecord, error) {
	rec := &domain.TradeRecord{}
	var action string
	var pnl, pnlPct sql.NullFloat64
	var reason sql.NullString
	err := s.Scan(
		&rec.ID, &rec.Timestamp, &action, &rec.Symbol, &rec.Quantity, &rec.Price,
		&pnl, &pnlPct, &reason, &rec.Rationale)
	if err != nil {
		return nil, err
	}
	rec.Action = domain.Action(action)
	if pnl.Valid {
		v := pnl.Float64
		rec.PnL = &v
	}
	if pnlPct.Valid {
		v := pnlPct.Float64
		rec.PnLPct = &v
	}
	if reason.Valid {
		rec.Reason = domain.CloseReason(reason.String)
	}
	return rec, nil
}
