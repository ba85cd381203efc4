package journal

import (
	"context"
	"fmt"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/passes"
)

// Run records the trials of one pass run. It implements
// passes.TrialRecorder.
type Run struct {
	ID string

	j     *Journal
	ctx   context.Context
	clock *Clock
}

var _ passes.TrialRecorder = (*Run)(nil)

// BeginRun inserts a run row and returns the recorder for its trials.
// input names the program being pruned, usually its file path.
func (j *Journal) BeginRun(ctx context.Context, input string, features ir.FeatureSet) (*Run, error) {
	id := j.ids.Generate()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, input, features, tool_version)
		VALUES (?, ?, ?, ?)
	`, id, input, features.String(), ir.ToolVersion)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return &Run{ID: id, j: j, ctx: ctx, clock: NewClock()}, nil
}

// RecordTrial appends t to the run. The sequence number comes from the
// run's clock.
func (r *Run) RecordTrial(t passes.Trial) error {
	seq := r.clock.Next()
	_, err := r.j.db.ExecContext(r.ctx, `
		INSERT INTO trials (run_id, seq, type_name, field_index, field_name, verdict, candidate)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, r.ID, seq, t.TypeName, t.FieldIndex, t.FieldName, string(t.Verdict), t.Candidate)
	if err != nil {
		return fmt.Errorf("record trial %d: %w", seq, err)
	}
	return nil
}

// Finish stores the final counters of the run.
func (r *Run) Finish(stats passes.Stats) error {
	_, err := r.j.db.ExecContext(r.ctx, `
		UPDATE runs SET iterations = ?, commits = ?, rejections = ?
		WHERE id = ?
	`, stats.Iterations, stats.Commits, stats.Rejections, r.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	return nil
}
