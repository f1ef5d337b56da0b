// Package history keeps past scenario verdicts in a sqlite database so that
// regressions in the explored outcome set show up between runs.
package history

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/o2lab/ordercheck/report"
	log "github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	scenario        TEXT    NOT NULL,
	started_at      INTEGER NOT NULL,
	passed          INTEGER NOT NULL,
	iterations      INTEGER NOT NULL,
	distinct_traces INTEGER NOT NULL,
	outcomes        TEXT    NOT NULL,
	error           TEXT    NOT NULL,
	token           TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_scenario ON runs (scenario, started_at);
`

type Run struct {
	ID             int64
	Scenario       string
	StartedAt      time.Time
	Passed         bool
	Iterations     int
	DistinctTraces int
	Outcomes       map[string]int
	Error          string
	Token          string
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" works
// for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("Opened history %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the verdict of r.
func (s *Store) Record(ctx context.Context, r report.Result, startedAt time.Time) (int64, error) {
	run := Run{Scenario: r.Scenario, StartedAt: startedAt, Passed: r.Passed, Outcomes: map[string]int{}}
	if r.Report != nil {
		run.Iterations = r.Report.Iterations
		run.DistinctTraces = r.Report.DistinctTraces
		run.Outcomes = r.Report.Outcomes
		if r.Report.Failure != nil {
			run.Token = r.Report.Failure.Token
		}
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	outcomes, err := sonnet.Marshal(run.Outcomes)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (scenario, started_at, passed, iterations, distinct_traces, outcomes, error, token)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Scenario, run.StartedAt.UnixNano(), run.Passed, run.Iterations, run.DistinctTraces,
		string(outcomes), run.Error, run.Token)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Recent returns up to limit runs, newest first. An empty scenario matches
// every scenario.
func (s *Store) Recent(ctx context.Context, scenario string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scenario, started_at, passed, iterations, distinct_traces, outcomes, error, token
		 FROM runs WHERE ? = '' OR scenario = ?
		 ORDER BY started_at DESC, id DESC LIMIT ?`,
		scenario, scenario, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt int64
		var outcomes string
		if err := rows.Scan(&run.ID, &run.Scenario, &startedAt, &run.Passed, &run.Iterations,
			&run.DistinctTraces, &outcomes, &run.Error, &run.Token); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, startedAt)
		if err := sonnet.Unmarshal([]byte(outcomes), &run.Outcomes); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// OutcomesChanged reports whether r explored a different outcome set than
// the latest recorded run of the same scenario.
func (s *Store) OutcomesChanged(ctx context.Context, r report.Result) (bool, error) {
	runs, err := s.Recent(ctx, r.Scenario, 1)
	if err != nil || len(runs) == 0 || r.Report == nil {
		return false, err
	}
	prev := runs[0].Outcomes
	if len(prev) != len(r.Report.Outcomes) {
		return true, nil
	}
	for k := range r.Report.Outcomes {
		if _, ok := prev[k]; !ok {
			return true, nil
		}
	}
	return false, nil
}
