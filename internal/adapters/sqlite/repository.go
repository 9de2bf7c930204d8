package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"riskBacktester/internal/domain"
	"riskBacktester/internal/ports"
	"riskBacktester/internal/utils"
)

// Repository implements ports.ResultRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/backtests.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, fmt.Errorf("%w: %v", ports.ErrDBConnection, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, fmt.Errorf("%w: %v", ports.ErrDBConnection, err)
	}

	// One writer at a time; the driver serializes anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		symbol TEXT NOT NULL,
		forecaster_version TEXT NOT NULL,
		initial_capital REAL NOT NULL,
		max_risk_per_trade REAL NOT NULL,
		stop_loss_pct REAL NOT NULL,
		take_profit_pct REAL NOT NULL,
		trailing_stop_pct REAL NOT NULL,
		entry_threshold_pct REAL NOT NULL,
		total_trades INTEGER NOT NULL,
		final_equity REAL NOT NULL,
		total_return REAL NOT NULL,
		win_rate REAL NOT NULL,
		profit_factor REAL NULL, -- NULL when there were no losing trades
		expectancy REAL NOT NULL,
		sharpe_ratio REAL NOT NULL,
		sortino_ratio REAL NOT NULL,
		max_drawdown REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_trades (
		run_id TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		size REAL NOT NULL,
		profit REAL NOT NULL,
		trade_return REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS run_equity (
		run_id TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		time TIMESTAMP NOT NULL,
		capital REAL NOT NULL,
		equity REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs (symbol);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveRun persists the run with its ledger and equity curve in one transaction.
// An empty run.ID is replaced by a new ULID.
func (r *Repository) SaveRun(ctx context.Context, run *ports.RunRecord, trades []domain.Trade, equity []domain.EquityPoint) (string, error) {
	if run == nil {
		return "", fmt.Errorf("%w: run record is nil", ports.ErrInvalidRequest)
	}
	if run.ID == "" {
		run.ID = utils.NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to begin transaction: %v", ports.ErrDBConnection, err)
	}
	defer tx.Rollback() // No-op after Commit

	const runQuery = `
	INSERT INTO runs (id, created_at, symbol, forecaster_version,
	                  initial_capital, max_risk_per_trade, stop_loss_pct, take_profit_pct, trailing_stop_pct, entry_threshold_pct,
	                  total_trades, final_equity, total_return, win_rate, profit_factor, expectancy,
	                  sharpe_ratio, sortino_ratio, max_drawdown)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var profitFactor sql.NullFloat64
	if !math.IsInf(run.ProfitFactor, 0) && !math.IsNaN(run.ProfitFactor) {
		profitFactor = sql.NullFloat64{Float64: run.ProfitFactor, Valid: true}
	}

	p := run.Params
	if _, err := tx.ExecContext(ctx, runQuery,
		run.ID, run.CreatedAt, run.Symbol, run.ForecasterVersion,
		p.InitialCapital, p.MaxRiskPerTrade, p.StopLossPct, p.TakeProfitPct, p.TrailingStopPct, p.EntryThresholdPct,
		run.TotalTrades, run.FinalEquity, run.TotalReturn, run.WinRate, profitFactor, run.Expectancy,
		run.SharpeRatio, run.SortinoRatio, run.MaxDrawdown); err != nil {
		if isConstraintViolation(err) {
			return "", fmt.Errorf("run %s: %w", run.ID, ports.ErrDuplicateEntry)
		}
		return "", fmt.Errorf("%w: failed to insert run %s: %v", ports.ErrQueryFailed, run.ID, err)
	}

	if len(trades) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_trades (run_id, seq, entry_time, exit_time, entry_price, exit_price, size, profit, trade_return, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("%w: failed to prepare trade insert: %v", ports.ErrQueryFailed, err)
		}
		defer stmt.Close()
		for i, t := range trades {
			if _, err := stmt.ExecContext(ctx, run.ID, i, t.EntryTime, t.ExitTime, t.EntryPrice, t.ExitPrice,
				t.Size, t.Profit, t.Return, string(t.ExitReason)); err != nil {
				return "", fmt.Errorf("%w: failed to insert trade %d of run %s: %v", ports.ErrQueryFailed, i, run.ID, err)
			}
		}
	}

	if len(equity) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_equity (run_id, seq, time, capital, equity) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("%w: failed to prepare equity insert: %v", ports.ErrQueryFailed, err)
		}
		defer stmt.Close()
		for i, e := range equity {
			if _, err := stmt.ExecContext(ctx, run.ID, i, e.Time, e.Capital, e.Equity); err != nil {
				return "", fmt.Errorf("%w: failed to insert equity point %d of run %s: %v", ports.ErrQueryFailed, i, run.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: failed to commit run %s: %v", ports.ErrQueryFailed, run.ID, err)
	}

	r.logger.Debug(ctx, "Backtest run saved", map[string]interface{}{
		"runID":        run.ID,
		"trades":       len(trades),
		"equityPoints": len(equity),
	})
	return run.ID, nil
}

const runColumns = `
	id, created_at, symbol, forecaster_version,
	initial_capital, max_risk_per_trade, stop_loss_pct, take_profit_pct, trailing_stop_pct, entry_threshold_pct,
	total_trades, final_equity, total_return, win_rate, profit_factor, expectancy,
	sharpe_ratio, sortino_ratio, max_drawdown`

// FindRun retrieves a run by its ID.
func (r *Repository) FindRun(ctx context.Context, id string) (*ports.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Run not found by ID", map[string]interface{}{"runID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("%w: failed to query run %s: %v", ports.ErrQueryFailed, id, err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*ports.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list runs: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]*ports.RunRecord, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run during ListRuns: %w", err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// FindTrades returns the ledger of a run in the order it was recorded.
func (r *Repository) FindTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	const query = `
	SELECT entry_time, exit_time, entry_price, exit_price, size, profit, trade_return, exit_reason
	FROM run_trades
	WHERE run_id = ? ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trades of run %s: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		var t domain.Trade
		var reason string
		if err := rows.Scan(&t.EntryTime, &t.ExitTime, &t.EntryPrice, &t.ExitPrice, &t.Size, &t.Profit, &t.Return, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTrades: %w", err)
		}
		t.ExitReason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// FindEquity returns the equity curve of a run.
func (r *Repository) FindEquity(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT time, capital, equity FROM run_equity WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query equity of run %s: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	points := make([]domain.EquityPoint, 0)
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Time, &p.Capital, &p.Equity); err != nil {
			return nil, fmt.Errorf("failed to scan equity point during FindEquity: %w", err)
		}
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity rows: %w", err)
	}
	return points, nil
}

// DeleteRun removes a run together with its trades and equity curve.
func (r *Repository) DeleteRun(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete run %s: %v", ports.ErrQueryFailed, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for delete run %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("run %s not found for delete: %w", id, ports.ErrNotFound)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRun scans a row into a ports.RunRecord.
func scanRun(s scanner) (*ports.RunRecord, error) {
	run := &ports.RunRecord{}
	p := &run.Params
	var profitFactor sql.NullFloat64
	err := s.Scan(
		&run.ID, &run.CreatedAt, &run.Symbol, &run.ForecasterVersion,
		&p.InitialCapital, &p.MaxRiskPerTrade, &p.StopLossPct, &p.TakeProfitPct, &p.TrailingStopPct, &p.EntryThresholdPct,
		&run.TotalTrades, &run.FinalEquity, &run.TotalReturn, &run.WinRate, &profitFactor, &run.Expectancy,
		&run.SharpeRatio, &run.SortinoRatio, &run.MaxDrawdown)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if profitFactor.Valid {
		run.ProfitFactor = profitFactor.Float64
	} else {
		run.ProfitFactor = math.Inf(1)
	}
	return run, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
