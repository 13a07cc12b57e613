package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Korbielowski/AutoApply/internal/domain"
)

// Job is a stored posting with the pipeline's ranking.
type Job struct {
	ID        int64    `json:"id"`
	Site      string   `json:"site"`
	RunID     string   `json:"run_id"`
	Score     int      `json:"score"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
	domain.JobEntry
}

type ListJobsOpts struct {
	Sort   string // score | date | company | title
	Window string // 24h | 7d | all
	Site   string
	Limit  int
}

// SaveJob inserts job unless its job_url is already stored. It reports
// whether a row was added.
func (d *DB) SaveJob(ctx context.Context, job Job) (bool, error) {
	entry, err := json.Marshal(job.JobEntry)
	if err != nil {
		return false, err
	}
	tags := job.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	res, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO jobs (job_url, site, run_id, title, company_name, location, work_arrangement,
  discovery_date, score, tags, entry, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		job.JobURL, job.Site, job.RunID, job.Title, job.CompanyName, job.Location, job.WorkArrangement,
		job.DiscoveryDate, job.Score, string(tagsJSON), string(entry), now(),
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) ListJobs(ctx context.Context, opts ListJobsOpts) ([]Job, error) {
	// whitelist sort columns
	order := map[string]string{
		"score":   "score DESC, created_at DESC",
		"date":    "created_at DESC",
		"company": "company_name ASC",
		"title":   "title ASC",
	}[opts.Sort]
	if order == "" {
		order = "score DESC, created_at DESC"
	}

	where := "WHERE 1=1"
	switch opts.Window {
	case "24h":
		where += " AND created_at >= datetime('now','-24 hours')"
	case "all":
	default:
		where += " AND created_at >= datetime('now','-7 days')"
	}
	args := []any{}
	if opts.Site != "" {
		where += " AND site = ?"
		args = append(args, opts.Site)
	}
	limit := opts.Limit
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT id, site, run_id, score, tags, entry, created_at
FROM jobs
%s
ORDER BY %s
LIMIT ?;`, where, order)

	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		var j Job
		var tagsJSON, entryJSON string
		if err := rows.Scan(&j.ID, &j.Site, &j.RunID, &j.Score, &tagsJSON, &entryJSON, &j.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &j.Tags)
		if err := json.Unmarshal([]byte(entryJSON), &j.JobEntry); err != nil {
			return nil, fmt.Errorf("job %d: %w", j.ID, err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CleanupOldJobs removes jobs stored more than three months ago.
func (d *DB) CleanupOldJobs(ctx context.Context) (int64, error) {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < datetime('now', '-3 months');`)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

var ErrNotFound = errors.New("not found")

func (d *DB) DeleteJob(ctx context.Context, id int64) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	return nil
}
