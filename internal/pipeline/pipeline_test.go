package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/browser/browsertest"
	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/documents"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/extract"
	"github.com/Korbielowski/AutoApply/internal/navigate"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/pipeline"
	"github.com/Korbielowski/AutoApply/internal/store"
)

// fakeNav serves fixed pages of entries.
type fakeNav struct {
	profile *domain.SiteProfile
	pages   [][]browser.Element
	openErr error
	state   navigate.State
	page    int
	opened  bool
	// onOpen runs when Open succeeds.
	onOpen func(p *domain.SiteProfile)
}

func (n *fakeNav) Open(context.Context) error {
	if n.openErr != nil {
		n.state = navigate.Failed
		return n.openErr
	}
	n.opened = true
	if n.onOpen != nil {
		n.onOpen(n.profile)
	}
	n.state = navigate.ListVisible
	return nil
}

func (n *fakeNav) Entries(context.Context) ([]browser.Element, error) {
	if n.page >= len(n.pages) {
		return nil, nil
	}
	return n.pages[n.page], nil
}

func (n *fakeNav) NextPage(context.Context) (bool, error) {
	n.page++
	if n.page >= len(n.pages) {
		n.state = navigate.Done
		return false, nil
	}
	return true, nil
}

func (n *fakeNav) State() navigate.State        { return n.state }
func (n *fakeNav) Profile() *domain.SiteProfile { return n.profile }

type fakeExtractor struct {
	calls    int
	err      map[string]error
	location string
}

func (f *fakeExtractor) Extract(_ context.Context, el browser.Element) (*domain.JobEntry, error) {
	f.calls++
	if err := f.err[el.Href]; err != nil {
		return nil, fmt.Errorf("%w: %w", extract.ErrDropped, err)
	}
	loc := "Warsaw"
	if f.location != "" {
		loc = f.location
	}
	return &domain.JobEntry{
		Title:           "Go Developer " + el.Text,
		CompanyName:     "Acme",
		JobURL:          el.Href,
		Location:        loc,
		WorkArrangement: "hybrid",
		Requirements:    "Go",
	}, nil
}

type fakeEvaluator struct {
	calls  int
	reject map[string]bool
}

func (f *fakeEvaluator) Evaluate(_ context.Context, e *domain.JobEntry) (bool, error) {
	f.calls++
	return !f.reject[e.JobURL], nil
}

type fakeGenerator struct{ modes []documents.Mode }

func (f *fakeGenerator) Generate(_ context.Context, e *domain.JobEntry, mode documents.Mode) (documents.Reference, error) {
	f.modes = append(f.modes, mode)
	return documents.Reference{CVPath: "/cv/" + e.Title + ".md"}, nil
}

type memStore struct {
	jobs     []store.Job
	saved    []*domain.SiteProfile
	profiles map[string]map[domain.StepKey]domain.CachedStrategy
}

func (m *memStore) SaveJob(_ context.Context, j store.Job) (bool, error) {
	m.jobs = append(m.jobs, j)
	return true, nil
}

func (m *memStore) LoadProfile(_ context.Context, p *domain.SiteProfile) error {
	if steps, ok := m.profiles[p.Name]; ok {
		p.Steps = steps
	}
	return nil
}

func (m *memStore) SaveProfile(_ context.Context, p *domain.SiteProfile) error {
	m.saved = append(m.saved, p)
	return nil
}

func entries(prefix string, n int) []browser.Element {
	out := make([]browser.Element, n)
	for i := range out {
		out[i] = browser.Element{
			Ref:  fmt.Sprintf(`[data-aa-ref="%d"]`, i),
			Text: fmt.Sprintf("%s-%d", prefix, i),
			Href: fmt.Sprintf("https://jobs.example/%s/%d", prefix, i),
		}
	}
	return out
}

type fixture struct {
	driver    *pipeline.Driver
	browser   *browsertest.Browser
	extractor *fakeExtractor
	evaluator *fakeEvaluator
	generator *fakeGenerator
	store     *memStore
	navs      map[string]*fakeNav
}

func newFixture(navs map[string]*fakeNav) *fixture {
	f := &fixture{
		browser:   browsertest.NewBrowser(browsertest.Site{}),
		extractor: &fakeExtractor{err: map[string]error{}},
		evaluator: &fakeEvaluator{reject: map[string]bool{}},
		generator: &fakeGenerator{},
		store:     &memStore{profiles: map[string]map[domain.StepKey]domain.CachedStrategy{}},
		navs:      navs,
	}
	reg := navigate.NewRegistry()
	reg.Register("fake", func(t navigate.Target) (navigate.Navigator, error) {
		n := navs[t.Profile.Name]
		n.profile = t.Profile
		return n, nil
	})
	f.driver = &pipeline.Driver{
		Browser:    f.browser,
		Navigators: reg,
		Extractor:  f.extractor,
		Evaluator:  f.evaluator,
		Generator:  f.generator,
		Persister:  f.store,
		Profiles:   f.store,
		Mode:       documents.LLMSelection,
	}
	return f
}

func sites(names ...string) []config.Site {
	out := make([]config.Site, len(names))
	for i, n := range names {
		out[i] = config.Site{Name: n, Kind: "fake", URL: "https://" + n}
	}
	return out
}

func collect(t *testing.T, f *fixture, s []config.Site) []pipeline.Event {
	t.Helper()
	var out []pipeline.Event
	for e := range f.driver.Run(context.Background(), s) {
		out = append(out, e)
	}
	return out
}

func TestRunStreamsEveryEntry(t *testing.T) {
	f := newFixture(map[string]*fakeNav{
		"a": {pages: [][]browser.Element{entries("a", 2), entries("b", 1)}},
	})
	f.evaluator.reject["https://jobs.example/a/1"] = true

	events := collect(t, f, sites("a"))

	require.Len(t, events, 3)
	runID := events[0].RunID
	for _, e := range events {
		assert.Equal(t, pipeline.KindEntry, e.Kind)
		assert.Equal(t, "a", e.Site)
		assert.Equal(t, runID, e.RunID)
		assert.NotNil(t, e.Entry)
	}
	assert.True(t, events[0].Qualified)
	assert.False(t, events[1].Qualified)
	assert.Nil(t, events[1].Entry.CVPath)
	require.NotNil(t, events[0].Entry.CVPath)
	assert.Equal(t, "/cv/Go Developer a-0.md", *events[0].Entry.CVPath)

	require.Len(t, f.store.jobs, 2)
	assert.Equal(t, runID, f.store.jobs[0].RunID)
	assert.Equal(t, []documents.Mode{documents.LLMSelection, documents.LLMSelection}, f.generator.modes)
	assert.Zero(t, f.browser.OpenPages())
}

func TestRunEmitsNoDataForEmptySites(t *testing.T) {
	testCases := []struct {
		name    string
		nav     *fakeNav
		wantErr string
	}{
		{name: "no entries", nav: &fakeNav{pages: [][]browser.Element{{}}}},
		{name: "login failure", nav: &fakeNav{openErr: navigate.ErrLoginFields}, wantErr: navigate.ErrLoginFields.Error()},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(map[string]*fakeNav{
				"empty": tc.nav,
				"full":  {pages: [][]browser.Element{entries("x", 1)}},
			})

			events := collect(t, f, sites("empty", "full"))

			require.Len(t, events, 2)
			assert.Equal(t, pipeline.KindNoData, events[0].Kind)
			assert.Equal(t, "empty", events[0].Site)
			assert.Equal(t, tc.wantErr, events[0].Error)
			assert.Equal(t, "null", string(events[0].Payload()))
			assert.Equal(t, pipeline.KindEntry, events[1].Kind)
			assert.Equal(t, "full", events[1].Site)
		})
	}
}

func TestRunSkipsDroppedEntries(t *testing.T) {
	f := newFixture(map[string]*fakeNav{
		"a": {pages: [][]browser.Element{entries("a", 3)}},
	})
	f.extractor.err["https://jobs.example/a/1"] = domain.ErrInvalidEntry

	events := collect(t, f, sites("a"))

	require.Len(t, events, 2)
	assert.Equal(t, "https://jobs.example/a/0", events[0].Entry.JobURL)
	assert.Equal(t, "https://jobs.example/a/2", events[1].Entry.JobURL)
}

func TestRunAbortsSiteOnFatalOracleError(t *testing.T) {
	f := newFixture(map[string]*fakeNav{
		"a": {pages: [][]browser.Element{entries("a", 3)}},
		"b": {pages: [][]browser.Element{entries("b", 1)}},
	})
	f.extractor.err["https://jobs.example/a/0"] = oracle.ErrUnauthorized

	events := collect(t, f, sites("a", "b"))

	require.Len(t, events, 2)
	assert.Equal(t, pipeline.KindNoData, events[0].Kind)
	assert.Contains(t, events[0].Error, oracle.ErrUnauthorized.Error())
	assert.Equal(t, "b", events[1].Site)
	assert.Equal(t, 2, f.extractor.calls)
}

func TestRunStopsWhenConsumerStops(t *testing.T) {
	f := newFixture(map[string]*fakeNav{
		"a": {pages: [][]browser.Element{entries("a", 5)}},
		"b": {pages: [][]browser.Element{entries("b", 5)}},
	})

	n := 0
	for range f.driver.Run(context.Background(), sites("a", "b")) {
		n++
		if n == 2 {
			break
		}
	}

	assert.Equal(t, 2, f.extractor.calls)
	assert.False(t, f.navs["b"].opened)
	assert.Zero(t, f.browser.OpenPages())
}

func TestRunHonoursCancellation(t *testing.T) {
	f := newFixture(map[string]*fakeNav{
		"a": {pages: [][]browser.Element{entries("a", 1)}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var events []pipeline.Event
	for e := range f.driver.Run(ctx, sites("a")) {
		events = append(events, e)
	}
	assert.Empty(t, events)
	assert.Zero(t, f.extractor.calls)
}

func TestRunPrefilterSkipsEvaluation(t *testing.T) {
	f := newFixture(map[string]*fakeNav{
		"a": {pages: [][]browser.Element{entries("a", 1)}},
	})
	f.driver.Config.Filters.LocationsBlock = []string{"warsaw"}
	f.driver.Evaluator = &failingEvaluator{t: t}

	events := collect(t, f, sites("a"))

	require.Len(t, events, 1)
	assert.False(t, events[0].Qualified)
	assert.Empty(t, f.store.jobs)
}

func TestRunEvaluatesRemotePostingsWithDefaultFilters(t *testing.T) {
	f := newFixture(map[string]*fakeNav{
		"a": {pages: [][]browser.Element{entries("a", 1)}},
	})
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	f.driver.Config = cfg
	f.extractor.location = "Remote"

	events := collect(t, f, sites("a"))

	require.Len(t, events, 1)
	assert.Equal(t, 1, f.evaluator.calls)
	assert.True(t, events[0].Qualified)
	assert.Len(t, f.store.jobs, 1)
}

type failingEvaluator struct{ t *testing.T }

func (f *failingEvaluator) Evaluate(context.Context, *domain.JobEntry) (bool, error) {
	f.t.Error("evaluator called for a filtered entry")
	return false, errors.New("unexpected")
}

func TestRunPersistsLearnedStrategies(t *testing.T) {
	f := newFixture(map[string]*fakeNav{
		"a": {pages: [][]browser.Element{entries("a", 1)}},
	})
	f.store.profiles["a"] = map[domain.StepKey]domain.CachedStrategy{
		domain.StepConsent: {Predicate: domain.Predicate{Strategy: domain.StrategyID, Value: "ok"}},
	}
	f.navs["a"].onOpen = func(p *domain.SiteProfile) {
		p.Remember(domain.StepNextPage, domain.Predicate{Strategy: domain.StrategyText, Value: "Next"})
	}

	collect(t, f, sites("a"))

	require.Len(t, f.store.saved, 1)
	saved := f.store.saved[0]
	assert.Contains(t, saved.Steps, domain.StepConsent)
	assert.Contains(t, saved.Steps, domain.StepNextPage)
}
