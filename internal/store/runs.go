package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/visionforge/visionforge/internal/ailink/driver"
	"github.com/visionforge/visionforge/internal/response"
	"github.com/visionforge/visionforge/internal/technique"
	"github.com/visionforge/visionforge/internal/workflow"
)

const defaultRunLimit = 20

// RunRecord is one row of run history.
type RunRecord struct {
	ID           string     `json:"id"`
	WorkflowID   string     `json:"workflow_id"`
	WorkflowName string     `json:"workflow_name"`
	Status       string     `json:"status"`
	CardCount    int        `json:"card_count"`
	FailedCount  int        `json:"failed_count"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

var _ workflow.Recorder = (*Store)(nil)

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, run *workflow.RunResult) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_id, workflow_name, status, card_count, failed_count, started_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?)`,
		run.RunID, run.WorkflowID, run.WorkflowName, run.Status, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordResult stores the outcome of one card.
func (s *Store) RecordResult(ctx context.Context, runID string, res workflow.CardResult) error {
	if err := s.ready(); err != nil {
		return err
	}
	payload, err := json.Marshal(res.Response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	var promptTokens, completionTokens, totalTokens sql.NullInt64
	if res.Usage != nil {
		promptTokens = sql.NullInt64{Int64: int64(res.Usage.PromptTokens), Valid: true}
		completionTokens = sql.NullInt64{Int64: int64(res.Usage.CompletionTokens), Valid: true}
		totalTokens = sql.NullInt64{Int64: int64(res.Usage.TotalTokens), Valid: true}
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO card_results (
			run_id, card_id, card_index, title, technique, prompt, response_json, confidence,
			model, provider, prompt_tokens, completion_tokens, total_tokens,
			ok, error, error_code, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, card_index) DO UPDATE SET
			response_json = excluded.response_json,
			confidence = excluded.confidence,
			ok = excluded.ok,
			error = excluded.error,
			error_code = excluded.error_code,
			duration_ms = excluded.duration_ms`,
		runID, res.CardID, res.Index, res.Title, string(res.Technique), res.Prompt, string(payload),
		string(res.Response.Confidence), res.Model, res.Provider, promptTokens, completionTokens, totalTokens,
		boolToInt(res.OK), res.Error, res.ErrorCode, res.StartedAt.UnixMilli(), res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert card result: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counts.
func (s *Store) FinishRun(ctx context.Context, run *workflow.RunResult) error {
	if err := s.ready(); err != nil {
		return err
	}
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status = ?, card_count = ?, failed_count = ?, finished_at = ? WHERE id = ?`,
		run.Status, len(run.Results), run.Failed(), finished.UnixMilli(), run.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 uses a default.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, workflow_id, workflow_name, status, card_count, failed_count, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetRun returns the run with id, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, workflow_id, workflow_name, status, card_count, failed_count, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListResults returns the card results of a run in card order.
func (s *Store) ListResults(ctx context.Context, runID string) ([]workflow.CardResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT card_id, card_index, title, technique, prompt, response_json, model, provider,
			prompt_tokens, completion_tokens, total_tokens, ok, error, error_code, started_at, duration_ms
		 FROM card_results WHERE run_id = ? ORDER BY card_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list card results: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []workflow.CardResult
	for rows.Next() {
		var (
			res                                workflow.CardResult
			title, prompt, model, provider     sql.NullString
			errText, errCode                   sql.NullString
			kind, payload                      string
			promptTok, completionTok, totalTok sql.NullInt64
			ok                                 int
			startedMs, durationMs              int64
		)
		if err := rows.Scan(&res.CardID, &res.Index, &title, &kind, &prompt, &payload, &model, &provider,
			&promptTok, &completionTok, &totalTok, &ok, &errText, &errCode, &startedMs, &durationMs); err != nil {
			return nil, fmt.Errorf("scan card result: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &res.Response); err != nil {
			return nil, fmt.Errorf("decode stored response: %w", err)
		}
		res.Response = normalizeProcessed(res.Response)
		res.Title = title.String
		res.Technique = technique.Kind(kind)
		res.Prompt = prompt.String
		res.Model = model.String
		res.Provider = provider.String
		res.OK = ok != 0
		res.Error = errText.String
		res.ErrorCode = errCode.String
		res.StartedAt = time.UnixMilli(startedMs).UTC()
		res.Duration = time.Duration(durationMs) * time.Millisecond
		if totalTok.Valid {
			res.Usage = &driver.Usage{
				PromptTokens:     int(promptTok.Int64),
				CompletionTokens: int(completionTok.Int64),
				TotalTokens:      int(totalTok.Int64),
			}
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		rec       RunRecord
		startedMs int64
		finished  sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.WorkflowID, &rec.WorkflowName, &rec.Status,
		&rec.CardCount, &rec.FailedCount, &startedMs, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	rec.StartedAt = time.UnixMilli(startedMs).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		rec.FinishedAt = &t
	}
	return &rec, nil
}

func normalizeProcessed(p response.Processed) response.Processed {
	if p.CodeBlocks == nil {
		p.CodeBlocks = []response.CodeBlock{}
	}
	if p.KeyFindings == nil {
		p.KeyFindings = []string{}
	}
	return p
}

func (s *Store) ready() error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
