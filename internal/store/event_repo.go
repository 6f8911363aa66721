package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type eventRepo struct {
	drv dialect.Driver
	seq *sequenceCounter
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	_, err = execB(ctx, r.drv, sqlite().Insert(LLMRequestEventsTable.Name).
		Columns(llmEventColumns[1:]...).
		Values(
			seq, time.Now().UTC(), data.Provider, data.Model, data.Purpose,
			data.InputTokens, data.OutputTokens, data.LatencyMs, data.Success,
			data.ErrorMessage, data.RequestBody, data.ResponseBody,
		))
	if err != nil {
		return fmt.Errorf("append llm request event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error) {
	sel := sqlite().Select(llmEventColumns...).
		From(entsql.Table(LLMRequestEventsTable.Name)).
		OrderBy(entsql.Desc("sequence"))
	sel = applyQueryOpts(sel, opts)

	var out []LLMRequestEventRecord
	err := queryB(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		rec, err := scanLLMEvent(rows)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query llm events: %w", err)
	}
	return out, nil
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error) {
	sel := sqlite().Select(llmEventColumns...).
		From(entsql.Table(LLMRequestEventsTable.Name)).
		Where(entsql.EQ("id", id))

	var out *LLMRequestEventRecord
	err := queryB(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		rec, err := scanLLMEvent(rows)
		if err != nil {
			return err
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get llm event: %w", err)
	}
	return out, nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error) {
	var out []LLMUsageStats
	err := r.usage(ctx, "purpose", func(u usageRow) {
		out = append(out, LLMUsageStats{
			Purpose:        u.key,
			Requests:       u.requests,
			Failures:       u.requests - u.successes,
			InputTokens:    u.in,
			OutputTokens:   u.out,
			TotalLatencyMs: u.latencyMs,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("llm usage by purpose: %w", err)
	}
	return out, nil
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error) {
	var out []LLMModelUsage
	err := r.usage(ctx, "model", func(u usageRow) {
		out = append(out, LLMModelUsage{Model: u.key, Requests: u.requests, InputTokens: u.in, OutputTokens: u.out})
	})
	if err != nil {
		return nil, fmt.Errorf("llm usage by model: %w", err)
	}
	return out, nil
}

type usageRow struct {
	key                 string
	requests, successes int
	in, out             int
	latencyMs           int64
}

// usage groups llm_request_events by column and reports request, outcome,
// token and latency totals per group, ordered by group key.
func (r *eventRepo) usage(ctx context.Context, column string, emit func(usageRow)) error {
	sel := sqlite().Select(
		column,
		entsql.Count("*"),
		entsql.Sum("success"),
		entsql.Sum("input_tokens"),
		entsql.Sum("output_tokens"),
		entsql.Sum("latency_ms"),
	).
		From(entsql.Table(LLMRequestEventsTable.Name)).
		GroupBy(column).
		OrderBy(column)

	return queryB(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var u usageRow
		var ok, in, outputTk, latency sql.NullInt64
		if err := rows.Scan(&u.key, &u.requests, &ok, &in, &outputTk, &latency); err != nil {
			return err
		}
		u.successes, u.in, u.out, u.latencyMs = int(ok.Int64), int(in.Int64), int(outputTk.Int64), latency.Int64
		emit(u)
		return nil
	})
}

func (r *eventRepo) AppendActivity(ctx context.Context, data ActivityEventData) error {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	detail := "{}"
	if len(data.Detail) > 0 {
		b, err := json.Marshal(data.Detail)
		if err != nil {
			return fmt.Errorf("encode activity detail: %w", err)
		}
		detail = string(b)
	}
	_, err = execB(ctx, r.drv, sqlite().Insert(ActivityEventsTable.Name).
		Columns("sequence", "timestamp", "kind", "session_id", "student_id", "detail").
		Values(seq, time.Now().UTC(), data.Kind, data.SessionID, data.StudentID, detail))
	if err != nil {
		return fmt.Errorf("append activity event: %w", err)
	}
	return nil
}

// QueryActivity returns activity events oldest first. An empty sessionID
// matches every session.
func (r *eventRepo) QueryActivity(ctx context.Context, sessionID string, opts QueryOpts) ([]ActivityEventRecord, error) {
	sel := sqlite().Select("id", "sequence", "timestamp", "kind", "session_id", "student_id", "detail").
		From(entsql.Table(ActivityEventsTable.Name)).
		OrderBy("sequence")
	if sessionID != "" {
		sel = sel.Where(entsql.EQ("session_id", sessionID))
	}
	sel = applyQueryOpts(sel, opts)

	var out []ActivityEventRecord
	err := queryB(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			rec    ActivityEventRecord
			detail string
		)
		if err := rows.Scan(&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.Kind, &rec.SessionID, &rec.StudentID, &detail); err != nil {
			return err
		}
		if detail != "" && detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &rec.Detail); err != nil {
				return fmt.Errorf("decode activity detail: %w", err)
			}
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	return out, nil
}

var llmEventColumns = []string{
	"id", "sequence", "timestamp", "provider", "model", "purpose",
	"input_tokens", "output_tokens", "latency_ms", "success",
	"error_message", "request_body", "response_body",
}

func scanLLMEvent(rows *entsql.Rows) (LLMRequestEventRecord, error) {
	var rec LLMRequestEventRecord
	err := rows.Scan(
		&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.Provider, &rec.Model, &rec.Purpose,
		&rec.InputTokens, &rec.OutputTokens, &rec.LatencyMs, &rec.Success,
		&rec.ErrorMessage, &rec.RequestBody, &rec.ResponseBody,
	)
	return rec, err
}
