// Package storage is the SQLite scenario backend.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"proiezioni/internal/core"
	"proiezioni/internal/scenarios"

	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339Nano

	kindOneTime   = "one_time"
	kindRecurring = "recurring"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save implements scenarios.ScenarioWriter. Transactions and loans are
// replaced wholesale on update.
func (r *SQLiteRepository) Save(ctx context.Context, sc core.Scenario) (core.Scenario, error) {
	if err := sc.Validate(); err != nil {
		return core.Scenario{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Scenario{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UTC()
	if sc.ID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO scenarios (name, start_date, end_date, initial_balance_cents, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 1, ?, ?)`,
			sc.Name, sc.StartDate.String(), sc.EndDate.String(), sc.InitialBalance.Cents,
			now.Format(timeLayout), now.Format(timeLayout))
		if err != nil {
			return core.Scenario{}, fmt.Errorf("insert scenario: %w", err)
		}
		if sc.ID, err = res.LastInsertId(); err != nil {
			return core.Scenario{}, fmt.Errorf("scenario id: %w", err)
		}
		sc.Version = 1
		sc.CreatedAt = now
	} else {
		var created string
		err := tx.QueryRowContext(ctx,
			`UPDATE scenarios
			 SET name = ?, start_date = ?, end_date = ?, initial_balance_cents = ?, version = version + 1, updated_at = ?
			 WHERE id = ?
			 RETURNING version, created_at`,
			sc.Name, sc.StartDate.String(), sc.EndDate.String(), sc.InitialBalance.Cents,
			now.Format(timeLayout), sc.ID).Scan(&sc.Version, &created)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Scenario{}, scenarios.ErrNotFound
		}
		if err != nil {
			return core.Scenario{}, fmt.Errorf("update scenario %d: %w", sc.ID, err)
		}
		if sc.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return core.Scenario{}, fmt.Errorf("parse created_at: %w", err)
		}
		if err := deleteChildren(ctx, tx, sc.ID, false); err != nil {
			return core.Scenario{}, err
		}
	}
	sc.UpdatedAt = now

	if err := insertChildren(ctx, tx, sc); err != nil {
		return core.Scenario{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Scenario{}, fmt.Errorf("commit scenario: %w", err)
	}

	slog.InfoContext(ctx, "Scenario saved to SQLite",
		"id", sc.ID,
		"name", sc.Name,
		"version", sc.Version,
		"transactions", len(sc.OneTime)+len(sc.Recurring),
		"loans", len(sc.Loans))

	return sc, nil
}

func insertChildren(ctx context.Context, tx *sql.Tx, sc core.Scenario) error {
	const insertTx = `INSERT INTO scenario_transactions
		(scenario_id, position, kind, amount_cents, date, end_date, frequency, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	pos := 0
	for _, t := range sc.OneTime {
		if _, err := tx.ExecContext(ctx, insertTx, sc.ID, pos, kindOneTime,
			t.Amount.Cents, t.Date.String(), nil, nil, t.Description); err != nil {
			return fmt.Errorf("insert one-time transaction: %w", err)
		}
		pos++
	}
	for _, t := range sc.Recurring {
		if _, err := tx.ExecContext(ctx, insertTx, sc.ID, pos, kindRecurring,
			t.Amount.Cents, t.StartDate.String(), nullableDate(t.EndDate), string(t.Every), t.Description); err != nil {
			return fmt.Errorf("insert recurring transaction: %w", err)
		}
		pos++
	}
	for i, l := range sc.Loans {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_loans
			 (scenario_id, position, principal_cents, annual_rate, payment_cents, start_date, duration_months, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, i, l.Principal.Cents, l.AnnualRate, l.Payment.Cents,
			l.StartDate.String(), l.DurationMonths, l.Description); err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
	}
	return nil
}

func deleteChildren(ctx context.Context, tx *sql.Tx, id int64, withSnapshot bool) error {
	stmts := []string{
		`DELETE FROM scenario_transactions WHERE scenario_id = ?`,
		`DELETE FROM scenario_loans WHERE scenario_id = ?`,
	}
	if withSnapshot {
		stmts = append(stmts, `DELETE FROM scenario_snapshots WHERE scenario_id = ?`)
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete children of scenario %d: %w", id, err)
		}
	}
	return nil
}

// Delete implements scenarios.ScenarioWriter.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChildren(ctx, tx, id, true); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scenario %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return scenarios.ErrNotFound
	}
	return tx.Commit()
}

// Get implements scenarios.ScenarioReader.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Scenario, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date, initial_balance_cents, version, created_at, updated_at
		 FROM scenarios WHERE id = ?`, id)
	sc, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Scenario{}, scenarios.ErrNotFound
	}
	if err != nil {
		return core.Scenario{}, fmt.Errorf("get scenario %d: %w", id, err)
	}
	if err := r.loadChildren(ctx, &sc); err != nil {
		return core.Scenario{}, err
	}
	return sc, nil
}

// List implements scenarios.ScenarioReader.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Scenario, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, start_date, end_date, initial_balance_cents, version, created_at, updated_at
		 FROM scenarios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	var out []core.Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		out = append(out, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}

	// Children are loaded after the cursor is closed; the pool has one connection.
	for i := range out {
		if err := r.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (core.Scenario, error) {
	var (
		sc               core.Scenario
		start, end       string
		created, updated string
	)
	if err := row.Scan(&sc.ID, &sc.Name, &start, &end, &sc.InitialBalance.Cents,
		&sc.Version, &created, &updated); err != nil {
		return core.Scenario{}, err
	}
	var err error
	if sc.StartDate, err = core.ParseDate(start); err != nil {
		return core.Scenario{}, err
	}
	if sc.EndDate, err = core.ParseDate(end); err != nil {
		return core.Scenario{}, err
	}
	if sc.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return core.Scenario{}, err
	}
	if sc.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return core.Scenario{}, err
	}
	return sc, nil
}

func (r *SQLiteRepository) loadChildren(ctx context.Context, sc *core.Scenario) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, amount_cents, date, end_date, frequency, description
		 FROM scenario_transactions WHERE scenario_id = ? ORDER BY position`, sc.ID)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	for rows.Next() {
		var (
			kind, date, desc string
			cents            int64
			endDate, freq    sql.NullString
		)
		if err := rows.Scan(&kind, &cents, &date, &endDate, &freq, &desc); err != nil {
			rows.Close()
			return fmt.Errorf("scan transaction: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			rows.Close()
			return err
		}
		switch kind {
		case kindOneTime:
			sc.OneTime = append(sc.OneTime, core.OneTimeTransaction{
				Amount: core.Money{Cents: cents}, Date: d, Description: desc,
			})
		case kindRecurring:
			t := core.RecurringTransaction{
				Amount: core.Money{Cents: cents}, StartDate: d,
				Every: core.Frequency(freq.String), Description: desc,
			}
			if endDate.Valid && endDate.String != "" {
				if t.EndDate, err = core.ParseDate(endDate.String); err != nil {
					rows.Close()
					return err
				}
			}
			sc.Recurring = append(sc.Recurring, t)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT principal_cents, annual_rate, payment_cents, start_date, duration_months, description
		 FROM scenario_loans WHERE scenario_id = ? ORDER BY position`, sc.ID)
	if err != nil {
		return fmt.Errorf("load loans: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l     core.Loan
			start string
		)
		if err := rows.Scan(&l.Principal.Cents, &l.AnnualRate, &l.Payment.Cents,
			&start, &l.DurationMonths, &l.Description); err != nil {
			return fmt.Errorf("scan loan: %w", err)
		}
		if l.StartDate, err = core.ParseDate(start); err != nil {
			return err
		}
		sc.Loans = append(sc.Loans, l)
	}
	return rows.Err()
}

// SaveSnapshot implements scenarios.SnapshotWriter. An older version never
// replaces a newer one.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap core.Snapshot) error {
	summary, err := json.Marshal(snap.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	computed := snap.ComputedAt
	if computed.IsZero() {
		computed = r.now()
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM scenarios WHERE id = ?)`, snap.ScenarioID).Scan(&exists); err != nil {
		return fmt.Errorf("check scenario %d: %w", snap.ScenarioID, err)
	}
	if !exists {
		return scenarios.ErrNotFound
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO scenario_snapshots (scenario_id, version, summary_json, computed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(scenario_id) DO UPDATE SET
		   version = excluded.version,
		   summary_json = excluded.summary_json,
		   computed_at = excluded.computed_at
		 WHERE excluded.version >= scenario_snapshots.version`,
		snap.ScenarioID, snap.Version, string(summary), computed.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save snapshot for scenario %d: %w", snap.ScenarioID, err)
	}
	return nil
}

// LatestSnapshot implements scenarios.SnapshotReader.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, scenarioID int64) (core.Snapshot, error) {
	var (
		snap              core.Snapshot
		summary, computed string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT scenario_id, version, summary_json, computed_at FROM scenario_snapshots WHERE scenario_id = ?`,
		scenarioID).Scan(&snap.ScenarioID, &snap.Version, &summary, &computed)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, scenarios.ErrSnapshotNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("get snapshot for scenario %d: %w", scenarioID, err)
	}
	if err := json.Unmarshal([]byte(summary), &snap.Summary); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode summary: %w", err)
	}
	if snap.ComputedAt, err = time.Parse(timeLayout, computed); err != nil {
		return core.Snapshot{}, fmt.Errorf("parse computed_at: %w", err)
	}
	return snap, nil
}

func nullableDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.String()
}
