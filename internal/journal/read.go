package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/typedce/internal/passes"
)

// Summary aggregates one run.
type Summary struct {
	RunID      string `json:"run_id"`
	Input      string `json:"input"`
	Features   string `json:"features"`
	Trials     int    `json:"trials"`
	Accepted   int    `json:"accepted"`
	Rejected   int    `json:"rejected"`
	Iterations int    `json:"iterations"`
	Finished   bool   `json:"finished"`
}

// Trials returns the trials of a run ordered by seq. Seq in each result is
// the journal's sequence number.
func (j *Journal) Trials(ctx context.Context, runID string) ([]passes.Trial, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, type_name, field_index, field_name, verdict, candidate
		FROM trials
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	trials := []passes.Trial{}
	for rows.Next() {
		var t passes.Trial
		var verdict string
		if err := rows.Scan(&t.Seq, &t.TypeName, &t.FieldIndex, &t.FieldName, &verdict, &t.Candidate); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		t.Verdict = passes.Verdict(verdict)
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}
	return trials, nil
}

// Summary returns the counters of a run. It returns sql.ErrNoRows (wrapped)
// for an unknown run id.
func (j *Journal) Summary(ctx context.Context, runID string) (Summary, error) {
	s := Summary{RunID: runID}
	var iterations sql.NullInt64
	err := j.db.QueryRowContext(ctx, `
		SELECT input, features, iterations
		FROM runs
		WHERE id = ?
	`, runID).Scan(&s.Input, &s.Features, &iterations)
	if err != nil {
		return Summary{}, fmt.Errorf("query run %s: %w", runID, err)
	}
	s.Finished = iterations.Valid
	s.Iterations = int(iterations.Int64)

	err = j.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN verdict = 'accepted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN verdict = 'rejected' THEN 1 ELSE 0 END), 0)
		FROM trials
		WHERE run_id = ?
	`, runID).Scan(&s.Trials, &s.Accepted, &s.Rejected)
	if err != nil {
		return Summary{}, fmt.Errorf("count trials: %w", err)
	}
	return s, nil
}

// Runs returns the ids of all runs. UUIDv7 ids sort by creation time.
func (j *Journal) Runs(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return ids, nil
}
