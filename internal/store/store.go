// Package store persists batch runs and their per-site results in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jmylchreest/ptsites/internal/batch"
	"github.com/jmylchreest/ptsites/pkg/medal"
	"github.com/jmylchreest/ptsites/pkg/opencheck"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    sites       INTEGER NOT NULL DEFAULT 0,
    failures    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind, finished_at);

CREATE TABLE IF NOT EXISTS results (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(id),
    site       TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    url        TEXT NOT NULL DEFAULT '',
    handler    TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    message    TEXT NOT NULL DEFAULT '',
    payload    TEXT,
    checked_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
`

// Run kinds.
const (
	KindSignIn    = "signin"
	KindMedals    = "medals"
	KindOpenCheck = "opencheck"
)

// ErrNoRun is returned when no run of the requested kind exists.
var ErrNoRun = errors.New("no run recorded")

// Run summarises one stored batch.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Kind       string    `json:"kind" yaml:"kind"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Sites      int       `json:"sites" yaml:"sites"`
	Failures   int       `json:"failures" yaml:"failures"`
}

// Summary describes the run in one line.
func (r Run) Summary() []string {
	return []string{fmt.Sprintf("%s %-9s %d sites, %d failed, %s (%s)",
		shortID(r.ID), r.Kind, r.Sites, r.Failures,
		humanize.Time(r.FinishedAt), r.FinishedAt.Sub(r.StartedAt).Round(time.Second))}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Repository stores runs in a SQLite file.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// One writer at a time; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

type row struct {
	outcome batch.Outcome
	status  string
	message string
	payload any
}

func (r *Repository) record(ctx context.Context, kind string, started time.Time, rows []row, failed func(row) bool) (Run, error) {
	run := Run{
		ID:         uuid.NewString(),
		Kind:       kind,
		StartedAt:  started,
		FinishedAt: r.now(),
		Sites:      len(rows),
	}
	for _, rw := range rows {
		if failed(rw) {
			run.Failures++
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started_at, finished_at, sites, failures) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.StartedAt, run.FinishedAt, run.Sites, run.Failures,
	); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	for _, rw := range rows {
		var payload sql.NullString
		if rw.payload != nil {
			data, err := json.Marshal(rw.payload)
			if err != nil {
				return Run{}, fmt.Errorf("encode payload for %s: %w", rw.outcome.Site, err)
			}
			payload = sql.NullString{String: string(data), Valid: true}
		}
		o := rw.outcome
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (run_id, site, name, url, handler, status, message, payload, checked_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, o.Site, o.Name, o.URL, o.Handler, rw.status, rw.message, payload, o.CheckedAt,
		); err != nil {
			return Run{}, fmt.Errorf("insert result for %s: %w", o.Site, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, err
	}
	return run, nil
}

// RecordSignIn stores a sign-in batch.
func (r *Repository) RecordSignIn(ctx context.Context, started time.Time, outcomes []batch.SignInOutcome) (Run, error) {
	rows := make([]row, len(outcomes))
	for i, o := range outcomes {
		status := "failure"
		if o.Success {
			status = "success"
		}
		rows[i] = row{outcome: o.Outcome, status: status, message: o.Message}
	}
	return r.record(ctx, KindSignIn, started, rows, func(rw row) bool { return rw.status != "success" })
}

// RecordMedals stores a medal batch. The medal list is kept as JSON.
func (r *Repository) RecordMedals(ctx context.Context, started time.Time, outcomes []batch.MedalOutcome) (Run, error) {
	rows := make([]row, len(outcomes))
	for i, o := range outcomes {
		rw := row{outcome: o.Outcome, status: "ok", payload: o.Medals}
		if o.Error != "" {
			rw.status, rw.message = "error", o.Error
		} else {
			rw.message = fmt.Sprintf("%d medals, %d purchasable", len(o.Medals), len(medal.Purchasable(o.Medals)))
		}
		rows[i] = rw
	}
	return r.record(ctx, KindMedals, started, rows, func(rw row) bool { return rw.status == "error" })
}

// RecordOpenCheck stores a registration batch.
func (r *Repository) RecordOpenCheck(ctx context.Context, started time.Time, outcomes []batch.CheckOutcome) (Run, error) {
	rows := make([]row, len(outcomes))
	for i, o := range outcomes {
		rows[i] = row{
			outcome: o.Outcome,
			status:  string(o.Status),
			message: o.Message,
			payload: checkPayload{SignupURL: o.SignupURL, Carried: o.Carried},
		}
	}
	return r.record(ctx, KindOpenCheck, started, rows, func(rw row) bool {
		return !opencheck.Status(rw.status).Settled()
	})
}

type checkPayload struct {
	SignupURL string `json:"signup_url"`
	Carried   bool   `json:"carried,omitempty"`
}

// LatestRun returns the most recent run of kind.
func (r *Repository) LatestRun(ctx context.Context, kind string) (Run, error) {
	res := r.db.QueryRowContext(ctx,
		`SELECT id, kind, started_at, finished_at, sites, failures
		 FROM runs WHERE kind = ? ORDER BY rowid DESC LIMIT 1`, kind)
	run, err := scanRun(res)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRun
	}
	return run, err
}

// Runs lists the most recent runs, newest first.
func (r *Repository) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, started_at, finished_at, sites, failures
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestOpenCheck returns the outcomes of the most recent registration run,
// or nil when there is none.
func (r *Repository) LatestOpenCheck(ctx context.Context) ([]batch.CheckOutcome, error) {
	run, err := r.LatestRun(ctx, KindOpenCheck)
	if errors.Is(err, ErrNoRun) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT site, name, url, handler, status, message, COALESCE(payload, ''), checked_at
		 FROM results WHERE run_id = ? ORDER BY id`, run.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []batch.CheckOutcome
	for rows.Next() {
		var (
			o       batch.CheckOutcome
			status  string
			payload string
		)
		if err := rows.Scan(&o.Site, &o.Name, &o.URL, &o.Handler, &status, &o.Message, &payload, &o.CheckedAt); err != nil {
			return nil, err
		}
		o.Status = opencheck.Status(status)
		if payload != "" {
			var p checkPayload
			if err := json.Unmarshal([]byte(payload), &p); err == nil {
				o.SignupURL = p.SignupURL
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// LatestSignIn returns the outcomes of the most recent sign-in run.
func (r *Repository) LatestSignIn(ctx context.Context) ([]batch.SignInOutcome, error) {
	run, err := r.LatestRun(ctx, KindSignIn)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT site, name, url, handler, status, message, checked_at
		 FROM results WHERE run_id = ? ORDER BY id`, run.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []batch.SignInOutcome
	for rows.Next() {
		var (
			o      batch.SignInOutcome
			status string
		)
		if err := rows.Scan(&o.Site, &o.Name, &o.URL, &o.Handler, &status, &o.Message, &o.CheckedAt); err != nil {
			return nil, err
		}
		o.Success = status == "success"
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	err := s.Scan(&run.ID, &run.Kind, &run.StartedAt, &run.FinishedAt, &run.Sites, &run.Failures)
	return run, err
}
