package storage

// sqlite.go: journal de trading.
//
// Tablas:
//   windows: una fila por ventana adoptada (UPSERT por condition_id)
//   fills:   fills aplicados a la posición, deduplicados por (trade_id, order_id)
//   cycles:  un resumen por ciclo cancel-and-replace, con error si falló
//   halts:   armados del halt por pérdida
//
// Los timestamps se guardan como unix millis para que los rangos sean comparaciones enteras.
// Prune automático al arrancar: todo lo anterior a 30 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS windows (
    condition_id TEXT PRIMARY KEY,
    slug         TEXT,
    question     TEXT,
    up_token     TEXT NOT NULL,
    down_token   TEXT NOT NULL,
    tick_size    REAL NOT NULL,
    end_time     INTEGER NOT NULL,
    started_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
    id           TEXT PRIMARY KEY,
    condition_id TEXT NOT NULL,
    trade_id     TEXT NOT NULL,
    order_id     TEXT NOT NULL,
    side         TEXT NOT NULL,
    price        REAL NOT NULL,
    size         REAL NOT NULL,
    realized_pnl REAL NOT NULL DEFAULT 0,
    net_delta    REAL NOT NULL DEFAULT 0,
    at           INTEGER NOT NULL,
    UNIQUE(trade_id, order_id)
);

CREATE TABLE IF NOT EXISTS cycles (
    id           TEXT PRIMARY KEY,
    condition_id TEXT NOT NULL,
    bid_price    REAL NOT NULL DEFAULT 0,
    ask_price    REAL NOT NULL DEFAULT 0,
    bid_size     REAL NOT NULL DEFAULT 0,
    ask_size     REAL NOT NULL DEFAULT 0,
    fair_value   REAL NOT NULL DEFAULT 0,
    bid_order_id TEXT NOT NULL DEFAULT '',
    ask_order_id TEXT NOT NULL DEFAULT '',
    sign_us      INTEGER NOT NULL DEFAULT 0,
    cancel_us    INTEGER NOT NULL DEFAULT 0,
    submit_us    INTEGER NOT NULL DEFAULT 0,
    total_us     INTEGER NOT NULL DEFAULT 0,
    fallback     INTEGER NOT NULL DEFAULT 0,
    err          TEXT NOT NULL DEFAULT '',
    at           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS halts (
    id           TEXT PRIMARY KEY,
    condition_id TEXT NOT NULL,
    reason       TEXT NOT NULL,
    total_pnl    REAL NOT NULL,
    at           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_windows_started ON windows(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_fills_cond      ON fills(condition_id);
CREATE INDEX IF NOT EXISTS idx_cycles_cond     ON cycles(condition_id);
CREATE INDEX IF NOT EXISTS idx_halts_cond      ON halts(condition_id);
`

const retention = 30 * 24 * time.Hour

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia datos antiguos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

// RecordRotation registra la ventana adoptada. Una rotación repetida no duplica filas.
func (j *SQLiteJournal) RecordRotation(ctx context.Context, r domain.Rotation) error {
	w := r.Current
	if w.IsZero() {
		return nil
	}
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO windows (condition_id, slug, question, up_token, down_token, tick_size, end_time, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(condition_id) DO UPDATE SET
			slug     = excluded.slug,
			question = excluded.question,
			end_time = excluded.end_time
	`, w.ConditionID, w.Slug, w.Question, w.Up.TokenID, w.Down.TokenID, w.TickSize,
		millis(w.EndTime), millis(at),
	); err != nil {
		return fmt.Errorf("storage.RecordRotation: %s: %w", w.ConditionID, err)
	}
	return nil
}

// RecordFill persiste un fill. El mismo (trade, orden) solo se guarda una vez.
func (j *SQLiteJournal) RecordFill(ctx context.Context, f domain.FillRecord) error {
	tradeID := f.TradeID
	if tradeID == "" {
		tradeID = uuid.NewString()
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fills (id, condition_id, trade_id, order_id, side, price, size, realized_pnl, net_delta, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), f.ConditionID, tradeID, f.OrderID, f.Side.String(), f.Price, f.Size,
		f.RealizedPnL, f.NetDelta, millis(f.At),
	); err != nil {
		return fmt.Errorf("storage.RecordFill: %s: %w", tradeID, err)
	}
	return nil
}

// RecordCycle persiste el resumen de un ciclo.
func (j *SQLiteJournal) RecordCycle(ctx context.Context, c domain.CycleRecord) error {
	id := c.CycleID
	if id == "" {
		id = uuid.NewString()
	}
	fallback := 0
	if c.Timings.Fallback {
		fallback = 1
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cycles
			(id, condition_id, bid_price, ask_price, bid_size, ask_size, fair_value,
			 bid_order_id, ask_order_id, sign_us, cancel_us, submit_us, total_us, fallback, err, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, c.ConditionID, c.Quote.BidPrice, c.Quote.AskPrice, c.Quote.BidSize, c.Quote.AskSize, c.Quote.FairValue,
		c.Orders.BidOrderID, c.Orders.AskOrderID,
		c.Timings.Sign.Microseconds(), c.Timings.Cancel.Microseconds(), c.Timings.Submit.Microseconds(), c.Timings.Total.Microseconds(),
		fallback, c.Err, millis(c.At),
	); err != nil {
		return fmt.Errorf("storage.RecordCycle: %s: %w", id, err)
	}
	return nil
}

// RecordHalt persiste un armado del halt.
func (j *SQLiteJournal) RecordHalt(ctx context.Context, h domain.HaltRecord) error {
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO halts (id, condition_id, reason, total_pnl, at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), h.ConditionID, h.Reason, h.TotalPnL, millis(h.At),
	); err != nil {
		return fmt.Errorf("storage.RecordHalt: %w", err)
	}
	return nil
}

// Report agrega por ventana todo lo registrado para ventanas adoptadas desde since.
// Ordenado por inicio desc: las más recientes primero.
func (j *SQLiteJournal) Report(ctx context.Context, since time.Time) ([]domain.WindowReport, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT w.condition_id, COALESCE(w.slug, ''), w.started_at, w.end_time,
		       (SELECT COUNT(*)                    FROM fills  f WHERE f.condition_id = w.condition_id),
		       (SELECT COALESCE(SUM(f.size), 0)     FROM fills  f WHERE f.condition_id = w.condition_id),
		       (SELECT COALESCE(SUM(f.realized_pnl), 0) FROM fills f WHERE f.condition_id = w.condition_id),
		       (SELECT COUNT(*)                    FROM cycles c WHERE c.condition_id = w.condition_id),
		       (SELECT COUNT(*)                    FROM cycles c WHERE c.condition_id = w.condition_id AND c.err <> ''),
		       (SELECT COUNT(*)                    FROM halts  h WHERE h.condition_id = w.condition_id)
		FROM windows w
		WHERE w.started_at >= ?
		ORDER BY w.started_at DESC
	`, millis(since))
	if err != nil {
		return nil, fmt.Errorf("storage.Report: query: %w", err)
	}
	defer rows.Close()

	var reports []domain.WindowReport
	for rows.Next() {
		var r domain.WindowReport
		var started, end int64
		if err := rows.Scan(
			&r.ConditionID, &r.Slug, &started, &end,
			&r.Fills, &r.Volume, &r.RealizedPnL,
			&r.Cycles, &r.FailedCycles, &r.Halts,
		); err != nil {
			return nil, fmt.Errorf("storage.Report: scan row: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.EndTime = time.UnixMilli(end).UTC()
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := millis(time.Now().Add(-retention))
	j.db.ExecContext(ctx, `DELETE FROM fills   WHERE at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM cycles  WHERE at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM halts   WHERE at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM windows WHERE started_at < ?`, cutoff)
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
