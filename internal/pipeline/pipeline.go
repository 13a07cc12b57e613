// Package pipeline drives navigators, extraction, evaluation and document
// generation over a list of sites and streams the results.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/documents"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/extract"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/metrics"
	"github.com/Korbielowski/AutoApply/internal/navigate"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/rank"
	"github.com/Korbielowski/AutoApply/internal/store"
)

type Kind string

const (
	KindEntry  Kind = "entry"
	KindNoData Kind = "no-data"
)

// Event is one unit of the output stream: a processed posting, or a
// no-data marker for a site that produced nothing.
type Event struct {
	RunID     string           `json:"run_id"`
	Site      string           `json:"site"`
	Kind      Kind             `json:"kind"`
	Entry     *domain.JobEntry `json:"entry"`
	Qualified bool             `json:"qualified"`
	Score     int              `json:"score"`
	Tags      []string         `json:"tags,omitempty"`
	Error     string           `json:"error,omitempty"`
	At        time.Time        `json:"at"`
}

// Payload is the stream form of e: the entry JSON, or null.
func (e Event) Payload() []byte {
	if e.Kind != KindEntry || e.Entry == nil {
		return []byte("null")
	}
	b, err := json.Marshal(e.Entry)
	if err != nil {
		return []byte("null")
	}
	return b
}

type Persister interface {
	SaveJob(ctx context.Context, job store.Job) (bool, error)
}

// Profiles loads and stores the per-site strategy cache.
type Profiles interface {
	LoadProfile(ctx context.Context, p *domain.SiteProfile) error
	SaveProfile(ctx context.Context, p *domain.SiteProfile) error
}

// Driver runs sites one after another on a single browser. Generator,
// Persister, Profiles, Credentials and Codes are optional.
type Driver struct {
	Browser     browser.Browser
	Navigators  *navigate.Registry
	Extractor   extract.Extractor
	Evaluator   extract.Evaluator
	Generator   documents.Generator
	Persister   Persister
	Profiles    Profiles
	Config      config.Config
	Mode        documents.Mode
	Credentials func(site config.Site) (string, error)
	Codes       func(site config.Site) navigate.CodeSource
	Now         func() time.Time
	Log         logger.Logger
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// Run returns a lazy stream over sites. Nothing happens until the stream is
// ranged over, and no further work starts once the consumer stops or ctx is
// done.
func (d *Driver) Run(ctx context.Context, sites []config.Site) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		runID := uuid.NewString()
		log := logger.OrNop(d.Log).With(logger.Component("pipeline"), logger.String("run_id", runID))
		log.Info("run started", logger.Int("sites", len(sites)))
		for _, site := range sites {
			if site.Disabled {
				continue
			}
			if ctx.Err() != nil {
				log.Info("run cancelled", logger.Error(ctx.Err()))
				return
			}
			if !d.runSite(ctx, runID, site, log.With(logger.String("site", site.Name)), yield) {
				log.Info("consumer stopped")
				return
			}
		}
		log.Info("run finished")
	}
}

// runSite reports false when the stream must stop.
func (d *Driver) runSite(ctx context.Context, runID string, site config.Site, log logger.Logger, yield func(Event) bool) bool {
	emitted := 0
	emit := func(e Event) bool {
		e.RunID, e.Site, e.At = runID, site.Name, d.now()
		emitted++
		metrics.PipelineEvents.WithLabelValues(string(e.Kind)).Inc()
		return yield(e)
	}
	noData := func(err error) bool {
		e := Event{Kind: KindNoData}
		if err != nil {
			e.Error = err.Error()
		}
		return emit(e)
	}

	profile := d.profile(ctx, site, log)
	page, err := d.Browser.NewPage(ctx)
	if err != nil {
		log.Error("open page", logger.Error(err))
		return ctx.Err() == nil && noData(err)
	}
	defer func() { _ = page.Close() }()
	defer d.saveProfile(ctx, profile, log)

	var codes navigate.CodeSource
	if d.Codes != nil {
		codes = d.Codes(site)
	}
	nav, err := d.Navigators.Build(site.Kind, navigate.Target{
		Page:      page,
		Profile:   profile,
		Selectors: site.Selectors,
		Codes:     codes,
	})
	if err != nil {
		log.Error("build navigator", logger.Error(err))
		return noData(err)
	}

	more, err := d.crawl(ctx, runID, site, nav, log, emit)
	metrics.SiteRuns.WithLabelValues(nav.State().String()).Inc()
	if !more || ctx.Err() != nil {
		return false
	}
	if err != nil {
		log.Error("site aborted", logger.String("state", nav.State().String()), logger.Error(err))
	}
	if emitted == 0 {
		return noData(err)
	}
	return true
}

func (d *Driver) crawl(ctx context.Context, runID string, site config.Site, nav navigate.Navigator, log logger.Logger, emit func(Event) bool) (bool, error) {
	if err := nav.Open(ctx); err != nil {
		return true, err
	}
	for {
		entries, err := nav.Entries(ctx)
		if err != nil {
			return true, err
		}
		log.Debug("entries found", logger.Int("count", len(entries)))
		for _, el := range entries {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			e, err := d.process(ctx, runID, site, el, log)
			if err != nil {
				if oracle.Fatal(err) {
					return true, err
				}
				continue
			}
			if !emit(e) {
				return false, nil
			}
		}
		ok, err := nav.NextPage(ctx)
		if err != nil {
			return true, err
		}
		if !ok {
			return true, nil
		}
	}
}

// process returns an error only for dropped entries.
func (d *Driver) process(ctx context.Context, runID string, site config.Site, el browser.Element, log logger.Logger) (Event, error) {
	job, err := d.Extractor.Extract(ctx, el)
	if err != nil {
		return Event{}, err
	}
	log = log.With(logger.String("job_url", job.JobURL))

	v := rank.Prefilter(d.Config, job)
	qualified := v.Keep
	if !v.Keep {
		log.Debug("entry filtered", logger.String("reason", v.Reason), logger.Int("score", v.Score))
	}
	if qualified && d.Evaluator != nil {
		ok, err := d.Evaluator.Evaluate(ctx, job)
		switch {
		case oracle.Fatal(err):
			return Event{}, err
		case err != nil:
			log.Warn("evaluation failed", logger.Error(err))
			qualified = false
		default:
			qualified = ok
		}
	}

	if qualified {
		d.enrich(ctx, job, log)
		d.persist(ctx, store.Job{Site: site.Name, RunID: runID, Score: v.Score, Tags: v.Tags, JobEntry: *job}, log)
	}
	return Event{Kind: KindEntry, Entry: job, Qualified: qualified, Score: v.Score, Tags: v.Tags}, nil
}

func (d *Driver) enrich(ctx context.Context, job *domain.JobEntry, log logger.Logger) {
	if d.Generator == nil {
		return
	}
	ref, err := d.Generator.Generate(ctx, job, d.Mode)
	if err != nil {
		log.Warn("document generation failed", logger.Error(err))
		return
	}
	ref.Apply(job)
}

func (d *Driver) persist(ctx context.Context, job store.Job, log logger.Logger) {
	if d.Persister == nil {
		return
	}
	added, err := d.Persister.SaveJob(ctx, job)
	switch {
	case err != nil:
		log.Error("save job", logger.Error(err))
	case !added:
		log.Debug("job already stored")
	}
}

func (d *Driver) profile(ctx context.Context, site config.Site, log logger.Logger) *domain.SiteProfile {
	p := domain.NewSiteProfile(site.Name, site.URL)
	p.JobsURL = site.JobsURL
	p.Email = site.Email
	if n := d.Config.Locate.CacheFailureLimit; n > 0 {
		p.FailureLimit = n
	}
	if d.Profiles != nil {
		if err := d.Profiles.LoadProfile(ctx, p); err != nil {
			log.Warn("load site profile", logger.Error(err))
		}
	}
	if p.Email != "" && d.Credentials != nil {
		pw, err := d.Credentials(site)
		if err != nil {
			log.Warn("no site password, login will be skipped", logger.Error(err))
		}
		p.Password = pw
	}
	return p
}

func (d *Driver) saveProfile(ctx context.Context, p *domain.SiteProfile, log logger.Logger) {
	if d.Profiles == nil || !p.Dirty() {
		return
	}
	if err := d.Profiles.SaveProfile(context.WithoutCancel(ctx), p); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("save site profile", logger.Error(err))
	}
}
