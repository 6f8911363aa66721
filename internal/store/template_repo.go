package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/stepwise/internal/problem"
)

type templateRepo struct {
	drv dialect.Driver
}

// SaveTemplate validates t and inserts it, replacing an existing template
// with the same ID. Sessions already started keep their own copy of the
// steps.
func (r *templateRepo) SaveTemplate(ctx context.Context, t *problem.Template) error {
	if err := problem.Validate(t); err != nil {
		return err
	}
	steps, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	_, err = execB(ctx, tx, sqlite().Update(TemplatesTable.Name).
		Set("title", t.Title).
		Set("subject", t.Subject).
		Set("difficulty", t.Difficulty).
		Set("active", t.Active).
		Set("steps", string(steps)).
		Where(entsql.EQ("id", t.ID)))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update template: %w", err)
	}

	_, err = execB(ctx, tx, sqlite().Insert(TemplatesTable.Name).
		Columns("id", "title", "subject", "difficulty", "active", "steps", "created_at").
		Values(t.ID, t.Title, t.Subject, t.Difficulty, t.Active, string(steps), time.Now().UTC()).
		OnConflict(entsql.DoNothing()))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert template: %w", err)
	}
	return tx.Commit()
}

func (r *templateRepo) GetTemplate(ctx context.Context, id string) (*problem.Template, error) {
	sel := sqlite().Select(templateColumns...).
		From(entsql.Table(TemplatesTable.Name)).
		Where(entsql.EQ("id", id))

	var out *problem.Template
	err := queryB(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		t, err := scanTemplate(rows)
		out = t
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *templateRepo) ListTemplates(ctx context.Context) ([]*problem.Template, error) {
	sel := sqlite().Select(templateColumns...).
		From(entsql.Table(TemplatesTable.Name)).
		OrderBy("id")

	var out []*problem.Template
	err := queryB(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		t, err := scanTemplate(rows)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

var templateColumns = []string{"id", "title", "subject", "difficulty", "active", "steps"}

func scanTemplate(rows *entsql.Rows) (*problem.Template, error) {
	var (
		t     problem.Template
		steps string
	)
	if err := rows.Scan(&t.ID, &t.Title, &t.Subject, &t.Difficulty, &t.Active, &steps); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &t.Steps); err != nil {
		return nil, fmt.Errorf("decode steps of %s: %w", t.ID, err)
	}
	return &t, nil
}
