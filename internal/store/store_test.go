package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/store"
)

func openDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "autoapply.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func job(url, title string, score int) store.Job {
	return store.Job{
		Site:  "example",
		Score: score,
		Tags:  []string{"go"},
		JobEntry: domain.JobEntry{
			Title:           title,
			CompanyName:     "Acme",
			DiscoveryDate:   "2026-03-09",
			JobURL:          url,
			Location:        "Remote",
			WorkArrangement: "Remote",
			CompanyURL:      domain.Ptr("https://acme.example"),
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openDB(t)
	require.NoError(t, store.Migrate(context.Background(), db.Pool))

	var v int
	require.NoError(t, db.Pool.QueryRow(`PRAGMA user_version;`).Scan(&v))
	assert.Equal(t, 1, v)
}

func TestSaveJobDeduplicatesByURL(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	added, err := db.SaveJob(ctx, job("https://site.example/jobs/1", "Go Developer", 5))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.SaveJob(ctx, job("https://site.example/jobs/1", "Go Developer (again)", 9))
	require.NoError(t, err)
	assert.False(t, added)

	added, err = db.SaveJob(ctx, job("https://site.example/jobs/2", "Rust Developer", 7))
	require.NoError(t, err)
	assert.True(t, added)

	jobs, err := db.ListJobs(ctx, store.ListJobsOpts{Sort: "score"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Rust Developer", jobs[0].Title)
	assert.Equal(t, "Go Developer", jobs[1].Title)
	assert.Equal(t, []string{"go"}, jobs[1].Tags)
	require.NotNil(t, jobs[1].CompanyURL)
	assert.Equal(t, "https://acme.example", *jobs[1].CompanyURL)

	none, err := db.ListJobs(ctx, store.ListJobsOpts{Site: "other", Window: "all"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteJob(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	_, err := db.SaveJob(ctx, job("https://site.example/jobs/1", "Go Developer", 5))
	require.NoError(t, err)
	jobs, err := db.ListJobs(ctx, store.ListJobsOpts{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, db.DeleteJob(ctx, jobs[0].ID))
	assert.ErrorIs(t, db.DeleteJob(ctx, jobs[0].ID), store.ErrNotFound)
}

func TestProfileRoundTrip(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	p := domain.NewSiteProfile("example", "https://site.example")
	p.Remember(domain.StepLoginEmail, domain.Predicate{Strategy: domain.StrategyID, Value: "email"})
	p.Remember(domain.StepNextPage, domain.Predicate{Strategy: domain.StrategyText, Value: "Next"})
	p.RecordMiss(domain.StepNextPage)
	require.NoError(t, db.SaveProfile(ctx, p))
	assert.False(t, p.Dirty())

	loaded := domain.NewSiteProfile("example", "https://site.example")
	require.NoError(t, db.LoadProfile(ctx, loaded))
	require.Len(t, loaded.Steps, 2)

	email, ok := loaded.Lookup(domain.StepLoginEmail)
	require.True(t, ok)
	assert.Equal(t, domain.Predicate{Strategy: domain.StrategyID, Value: "email"}, email.Predicate)

	next, ok := loaded.Lookup(domain.StepNextPage)
	require.True(t, ok)
	assert.Equal(t, 1, next.Failures)

	// a dropped step disappears on the next save
	delete(p.Steps, domain.StepLoginEmail)
	require.NoError(t, db.SaveProfile(ctx, p))
	steps, err := db.LoadSteps(ctx, "example")
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}
