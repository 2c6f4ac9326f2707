package evalstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("evaluation run not found")

// Run is one batch evaluation.
type Run struct {
	RunID      string          `json:"run_id"`
	StartedNS  int64           `json:"started_ns"`
	FinishedNS int64           `json:"finished_ns,omitempty"`
	Version    string          `json:"version"`
	ConfigJSON json.RawMessage `json:"config_json,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// Result is the outcome for one labelled frame.
type Result struct {
	ResultID       int64           `json:"result_id"`
	RunID          string          `json:"run_id"`
	ImagePath      string          `json:"image_path"`
	Expected       string          `json:"expected"`
	Got            string          `json:"got"`
	Method         string          `json:"method"`
	Grammar        string          `json:"grammar"`
	Confidence     float64         `json:"confidence"`
	Correct        bool            `json:"correct"`
	Error          string          `json:"error,omitempty"`
	ElapsedNS      int64           `json:"elapsed_ns"`
	CandidatesJSON json.RawMessage `json:"candidates_json,omitempty"`
}

// MethodStats aggregates results that share a winning method.
type MethodStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// Summary aggregates a run.
type Summary struct {
	RunID    string  `json:"run_id"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Failed   int     `json:"failed"`
	Accuracy float64 `json:"accuracy"`
	// Confidence and elapsed statistics cover frames that produced a plate.
	MeanConfidence   float64                `json:"mean_confidence"`
	StdDevConfidence float64                `json:"stddev_confidence"`
	MedianElapsedNS  int64                  `json:"median_elapsed_ns"`
	ByMethod         map[string]MethodStats `json:"by_method"`
}

// CreateRun inserts a run. RunID and StartedNS are filled in when empty.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedNS == 0 {
		run.StartedNS = s.clock.Now().UnixNano()
	}
	var cfg interface{}
	if len(run.ConfigJSON) > 0 {
		cfg = string(run.ConfigJSON)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eval_runs (run_id, started_ns, version, config_json, notes)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.StartedNS, run.Version, cfg, run.Notes)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's completion time.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE eval_runs SET finished_ns = ? WHERE run_id = ?`,
		s.clock.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_ns, finished_ns, version, config_json, notes
		FROM eval_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// ListRuns returns runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_ns, finished_ns, version, config_json, notes
		FROM eval_runs ORDER BY started_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var finished sql.NullInt64
	var cfg sql.NullString
	if err := sc.Scan(&r.RunID, &r.StartedNS, &finished, &r.Version, &cfg, &r.Notes); err != nil {
		return nil, err
	}
	r.FinishedNS = finished.Int64
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	return &r, nil
}

// AddResult appends a frame result to its run.
func (s *Store) AddResult(ctx context.Context, res *Result) error {
	var cands interface{}
	if len(res.CandidatesJSON) > 0 {
		cands = string(res.CandidatesJSON)
	}
	out, err := s.db.ExecContext(ctx, `
		INSERT INTO eval_results (
			run_id, image_path, expected, got, method, grammar,
			confidence, correct, error, elapsed_ns, candidates_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.ImagePath, res.Expected, res.Got, res.Method, res.Grammar,
		res.Confidence, res.Correct, res.Error, res.ElapsedNS, cands)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	res.ResultID, _ = out.LastInsertId()
	return nil
}

// Results returns a run's results in insertion order.
func (s *Store) Results(ctx context.Context, runID string) ([]*Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT result_id, run_id, image_path, expected, got, method, grammar,
		       confidence, correct, error, elapsed_ns, candidates_json
		FROM eval_results WHERE run_id = ? ORDER BY result_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		var r Result
		var cands sql.NullString
		if err := rows.Scan(&r.ResultID, &r.RunID, &r.ImagePath, &r.Expected, &r.Got, &r.Method, &r.Grammar,
			&r.Confidence, &r.Correct, &r.Error, &r.ElapsedNS, &cands); err != nil {
			return nil, err
		}
		if cands.Valid {
			r.CandidatesJSON = json.RawMessage(cands.String)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its results.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM eval_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Summarize computes accuracy and confidence statistics for a run.
func (s *Store) Summarize(ctx context.Context, runID string) (*Summary, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	results, err := s.Results(ctx, runID)
	if err != nil {
		return nil, err
	}
	return Summarize(runID, results), nil
}

// Summarize aggregates results without touching the database.
func Summarize(runID string, results []*Result) *Summary {
	sum := &Summary{RunID: runID, Total: len(results), ByMethod: map[string]MethodStats{}}
	var confs []float64
	elapsed := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Correct {
			sum.Correct++
		}
		if r.Error != "" {
			sum.Failed++
		} else {
			confs = append(confs, r.Confidence)
			elapsed = append(elapsed, float64(r.ElapsedNS))
			ms := sum.ByMethod[r.Method]
			ms.Total++
			if r.Correct {
				ms.Correct++
			}
			sum.ByMethod[r.Method] = ms
		}
	}
	if sum.Total > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(sum.Total)
	}
	if len(confs) > 0 {
		mean, std := stat.MeanStdDev(confs, nil)
		if math.IsNaN(std) {
			std = 0
		}
		sum.MeanConfidence, sum.StdDevConfidence = mean, std
	}
	if len(elapsed) > 0 {
		sort.Float64s(elapsed)
		sum.MedianElapsedNS = int64(stat.Quantile(0.5, stat.Empirical, elapsed, nil))
	}
	return sum
}
