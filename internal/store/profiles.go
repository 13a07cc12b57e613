package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Korbielowski/AutoApply/internal/domain"
)

// LoadSteps returns the cached strategies stored for site.
func (d *DB) LoadSteps(ctx context.Context, site string) (map[domain.StepKey]domain.CachedStrategy, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT step, strategy, value, failures, updated_at
FROM automation_steps
WHERE site = ?;`, site)
	if err != nil {
		return nil, fmt.Errorf("load steps: %w", err)
	}
	defer rows.Close()

	out := map[domain.StepKey]domain.CachedStrategy{}
	for rows.Next() {
		var step, strategy, updated string
		var c domain.CachedStrategy
		if err := rows.Scan(&step, &strategy, &c.Value, &c.Failures, &updated); err != nil {
			return nil, err
		}
		c.Strategy = domain.Strategy(strategy)
		c.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out[domain.StepKey(step)] = c
	}
	return out, rows.Err()
}

// LoadProfile fills p.Steps from the database.
func (d *DB) LoadProfile(ctx context.Context, p *domain.SiteProfile) error {
	steps, err := d.LoadSteps(ctx, p.Name)
	if err != nil {
		return err
	}
	p.Steps = steps
	p.MarkClean()
	return nil
}

// SaveProfile replaces the stored strategies of p's site with p.Steps.
func (d *DB) SaveProfile(ctx context.Context, p *domain.SiteProfile) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM automation_steps WHERE site = ?;`, p.Name); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	for step, c := range p.Steps {
		updated := c.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO automation_steps (site, step, strategy, value, failures, updated_at)
VALUES (?, ?, ?, ?, ?, ?);`,
			p.Name, string(step), string(c.Strategy), c.Value, c.Failures, updated.UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.MarkClean()
	return nil
}
