// Package extract turns a job list entry into a validated domain.JobEntry
// and decides whether it fits the candidate.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/locate"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/prompts"
	"github.com/Korbielowski/AutoApply/internal/retry"
)

// ErrDropped marks an entry that produced no JobEntry. The cause is wrapped
// alongside it.
var ErrDropped = errors.New("entry dropped")

var jobSchema = oracle.MustSchema("job_entry", domain.OracleFields{})

type Extractor interface {
	Extract(ctx context.Context, entry browser.Element) (*domain.JobEntry, error)
}

// OracleExtractor opens each posting in its own page and has the oracle
// fill in the JobEntry schema.
type OracleExtractor struct {
	Browser     browser.Browser
	Oracle      oracle.Client
	Limiter     *browser.HostLimiter
	MaxSnapshot int
	// Policy retries page loads that time out; the oracle is asked once.
	Policy retry.Policy
	Sleep  retry.Sleeper
	Now    func() time.Time
	Log    logger.Logger
}

func (e *OracleExtractor) Extract(ctx context.Context, entry browser.Element) (*domain.JobEntry, error) {
	log := logger.OrNop(e.Log).With(logger.String("job_url", entry.Href))
	if entry.Href == "" {
		return nil, fmt.Errorf("%w: entry has no link", ErrDropped)
	}

	job, err := e.extract(ctx, entry.Href)
	if err != nil {
		log.Info("entry dropped", logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDropped, err)
	}
	return job, nil
}

func (e *OracleExtractor) extract(ctx context.Context, href string) (*domain.JobEntry, error) {
	if err := e.Limiter.WaitURL(ctx, href); err != nil {
		return nil, err
	}
	page, err := e.Browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	policy := e.Policy
	if policy == nil {
		policy = retry.Fixed{Delay: time.Second, MaxRetries: 2, Retryable: func(err error) bool {
			return errors.Is(err, browser.ErrTimeout)
		}}
	}
	if err := retry.Do(ctx, policy, e.Sleep, func(ctx context.Context) error { return page.Goto(ctx, href) }); err != nil {
		return nil, fmt.Errorf("load posting: %w", err)
	}
	if err := page.WaitStable(ctx); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	html, err := locate.Snapshot(ctx, page, e.MaxSnapshot)
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.Render("extract:job", map[string]any{"URL": href, "HTML": html})
	if err != nil {
		return nil, err
	}

	var fields domain.OracleFields
	if err := oracle.AskJSON(ctx, e.Oracle, prompt, jobSchema, &fields); err != nil {
		return nil, err
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	job := domain.NewJobEntry(fields, href, now())
	job.Normalize()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}
