package navigate_test

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Korbielowski/AutoApply/internal/browser/browsertest"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/locate"
	"github.com/Korbielowski/AutoApply/internal/navigate"
	"github.com/Korbielowski/AutoApply/internal/oracle"
)

const (
	base     = "https://site.example"
	loginURL = base + "/login"
	homeURL  = base + "/home"
	jobsURL  = base + "/jobs"
)

var reIntent = regexp.MustCompile(`description:\s*"([^"]*)"`)

// fakeOracle answers describe prompts by intent substring, confirms every
// candidate and accepts only entryClass as the job entry class.
type fakeOracle struct {
	mu         sync.Mutex
	describe   map[string]string
	entryClass string
	loginPage  bool
	prompts    []string
}

func (f *fakeOracle) Complete(_ context.Context, req oracle.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	p := req.Prompt
	switch {
	case strings.Contains(p, "Report its attributes"):
		m := reIntent.FindStringSubmatch(p)
		if m == nil {
			return "{}", nil
		}
		for sub, answer := range f.describe {
			if strings.Contains(m[1], sub) {
				return answer, nil
			}
		}
		return "{}", nil
	case strings.Contains(p, "Is the found element the intended one"):
		return "true", nil
	case strings.Contains(p, "The CSS class"):
		if f.entryClass != "" && strings.Contains(p, `"`+f.entryClass+`"`) {
			return "true", nil
		}
		return "false", nil
	case strings.Contains(p, "login or sign-in form"):
		if f.loginPage {
			return "yes", nil
		}
		return "no", nil
	}
	return "false", nil
}

type fakeCodes struct {
	code  string
	err   error
	since time.Time
}

func (f *fakeCodes) Code(_ context.Context, since time.Time) (string, error) {
	f.since = since
	return f.code, f.err
}

func noSleep(context.Context, time.Duration) error { return nil }

func newSession(t *testing.T, page *browsertest.Page, profile *domain.SiteProfile, o *fakeOracle, codes navigate.CodeSource, maxPages int) *navigate.Session {
	t.Helper()
	finder := locate.NewFinder(o, 0, 1, false, nil)
	return navigate.NewSession(page, profile, finder, o, codes, navigate.Options{MaxPages: maxPages, Sleep: noSleep}, nil)
}

const loginHTML = `<html><body><form>
<input id="email" type="email" name="email">
<input id="pass" type="password" name="password">
<button id="go" type="submit">Sign in</button>
</form></body></html>`

func listHTML(page int, next bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul>`)
	for i := 1; i <= 2; i++ {
		n := (page-1)*2 + i
		b.WriteString(`<li class="card offer"><a href="/jobs/` + string(rune('0'+n)) + `">Job ` + string(rune('0'+n)) + `</a></li>`)
	}
	b.WriteString(`</ul>`)
	if next {
		b.WriteString(`<a id="next" href="` + base + `/jobs?page=` + string(rune('0'+page+1)) + `">Next</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "consent-handled", navigate.ConsentHandled.String())
	assert.Equal(t, "failed", navigate.Failed.String())
	assert.Equal(t, "unknown", navigate.State(42).String())
}

func TestOpenWithoutConsentBanner(t *testing.T) {
	site := browsertest.Site{
		base + "/": `<html><body><h1>Welcome</h1></body></html>`,
		jobsURL:    listHTML(1, false),
	}
	page := browsertest.NewPage(site)
	profile := domain.NewSiteProfile("example", base+"/")
	profile.JobsURL = jobsURL
	o := &fakeOracle{}

	s := newSession(t, page, profile, o, nil, 0)
	require.NoError(t, s.Open(context.Background()))

	assert.Equal(t, navigate.ListVisible, s.State())
	assert.Empty(t, page.Clicks)
	assert.Equal(t, []string{base + "/", jobsURL}, page.Visited)
}

func TestOpenLogsIn(t *testing.T) {
	site := browsertest.Site{loginURL: loginHTML, homeURL: `<html><body>Hi</body></html>`, jobsURL: listHTML(1, false)}
	page := browsertest.NewPage(site)
	page.OnClick("#go", func(p *browsertest.Page) { _ = p.Navigate(homeURL) })
	page.FailActions = 2

	profile := domain.NewSiteProfile("example", loginURL)
	profile.JobsURL = jobsURL
	profile.Email = "me@example.com"
	profile.Password = "hunter2"
	o := &fakeOracle{describe: map[string]string{
		"e-mail address":    `{"id":"email"}`,
		"password field":    `{"id":"pass","elementType":"password"}`,
		"submits the login": `{"id":"go","visibleText":"Sign in"}`,
	}}

	s := newSession(t, page, profile, o, nil, 0)
	require.NoError(t, s.Open(context.Background()))

	assert.Equal(t, navigate.ListVisible, s.State())
	values := make([]string, 0, len(page.Fills))
	for _, v := range page.Fills {
		values = append(values, v)
	}
	assert.ElementsMatch(t, []string{"me@example.com", "hunter2"}, values)
	assert.Contains(t, page.Visited, homeURL)

	_, cached := profile.Lookup(domain.StepLoginSubmit)
	assert.True(t, cached)
	assert.True(t, profile.Dirty())
}

func TestOpenFailsWithoutLoginFields(t *testing.T) {
	site := browsertest.Site{loginURL: `<html><body><input id="email" type="email"></body></html>`}
	page := browsertest.NewPage(site)
	profile := domain.NewSiteProfile("example", loginURL)
	profile.Email = "me@example.com"
	profile.Password = "hunter2"
	o := &fakeOracle{describe: map[string]string{
		"e-mail address":    `{"id":"email"}`,
		"password field":    `{"id":"pass"}`,
		"submits the login": `{"id":"go"}`,
	}}

	s := newSession(t, page, profile, o, nil, 0)
	err := s.Open(context.Background())
	require.ErrorIs(t, err, navigate.ErrLoginFields)
	assert.Contains(t, err.Error(), "login:password")
	assert.Equal(t, navigate.Failed, s.State())
	assert.Empty(t, page.Fills)
}

func TestOpenEntersVerificationCode(t *testing.T) {
	checkpoint := base + "/checkpoint"
	site := browsertest.Site{
		loginURL:   loginHTML,
		checkpoint: `<html><body><input id="code" name="code"><button id="confirm">Confirm</button></body></html>`,
		homeURL:    `<html><body>Hi</body></html>`,
		jobsURL:    listHTML(1, false),
	}
	page := browsertest.NewPage(site)
	page.OnClick("#go", func(p *browsertest.Page) { _ = p.Navigate(checkpoint) })
	page.OnClick("#confirm", func(p *browsertest.Page) { _ = p.Navigate(homeURL) })

	profile := domain.NewSiteProfile("example", loginURL)
	profile.JobsURL = jobsURL
	profile.Email = "me@example.com"
	profile.Password = "hunter2"
	o := &fakeOracle{describe: map[string]string{
		"e-mail address":            `{"id":"email"}`,
		"password field":            `{"id":"pass"}`,
		"submits the login":         `{"id":"go"}`,
		"verification code sent":    `{"id":"code"}`,
		"confirms the verification": `{"id":"confirm"}`,
	}}
	codes := &fakeCodes{code: "424242"}

	s := newSession(t, page, profile, o, codes, 0)
	require.NoError(t, s.Open(context.Background()))

	assert.False(t, codes.since.IsZero())
	assert.Contains(t, page.Visited, homeURL)
	found := false
	for _, v := range page.Fills {
		found = found || v == "424242"
	}
	assert.True(t, found)
}

func TestOpenFailsWhenCodeMissing(t *testing.T) {
	checkpoint := base + "/checkpoint"
	site := browsertest.Site{
		loginURL:   loginHTML,
		checkpoint: `<html><body><input id="code" name="code"></body></html>`,
	}
	page := browsertest.NewPage(site)
	page.OnClick("#go", func(p *browsertest.Page) { _ = p.Navigate(checkpoint) })

	profile := domain.NewSiteProfile("example", loginURL)
	profile.Email = "me@example.com"
	profile.Password = "hunter2"
	o := &fakeOracle{describe: map[string]string{
		"e-mail address":         `{"id":"email"}`,
		"password field":         `{"id":"pass"}`,
		"submits the login":      `{"id":"go"}`,
		"verification code sent": `{"id":"code"}`,
	}}
	codes := &fakeCodes{err: context.DeadlineExceeded}

	s := newSession(t, page, profile, o, codes, 0)
	require.ErrorIs(t, s.Open(context.Background()), navigate.ErrVerification)
	assert.Equal(t, navigate.Failed, s.State())
}

func TestPaginationStopsAfterMaxPages(t *testing.T) {
	site := browsertest.Site{
		base + "/":            `<html><body></body></html>`,
		jobsURL:               listHTML(1, true),
		base + "/jobs?page=2": listHTML(2, true),
		base + "/jobs?page=3": listHTML(3, true),
	}
	testCases := []struct {
		name     string
		maxPages int
		wantJobs int
	}{
		{name: "capped at two", maxPages: 2, wantJobs: 4},
		{name: "until no next link", maxPages: 0, wantJobs: 6},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// the last page has no next link in the uncapped case
			s3 := site
			if tc.maxPages == 0 {
				s3 = browsertest.Site{}
				for k, v := range site {
					s3[k] = v
				}
				s3[base+"/jobs?page=3"] = listHTML(3, false)
			}
			page := browsertest.NewPage(s3)
			profile := domain.NewSiteProfile("example", base+"/")
			profile.JobsURL = jobsURL
			o := &fakeOracle{
				describe: map[string]string{
					"single job offer": `{"classList":["card","offer"]}`,
					"next page":        `{"id":"next","visibleText":"Next"}`,
				},
				entryClass: "offer",
			}
			s := newSession(t, page, profile, o, nil, tc.maxPages)
			ctx := context.Background()
			require.NoError(t, s.Open(ctx))

			var hrefs []string
			pages := 0
			for {
				els, err := s.Entries(ctx)
				require.NoError(t, err)
				for _, el := range els {
					hrefs = append(hrefs, el.Href)
				}
				pages++
				more, err := s.NextPage(ctx)
				require.NoError(t, err)
				if !more {
					break
				}
				require.Less(t, pages, 10, "pagination did not terminate")
			}

			assert.Len(t, hrefs, tc.wantJobs)
			assert.Contains(t, hrefs, base+"/jobs/1")
			assert.Equal(t, navigate.Done, s.State())

			cached, ok := profile.Lookup(domain.StepEntries)
			require.True(t, ok)
			assert.Equal(t, "offer", cached.Value)
		})
	}
}

func TestEntriesDeduplicatesByHref(t *testing.T) {
	site := browsertest.Site{
		base + "/": `<html><body></body></html>`,
		jobsURL: `<html><body>
<div class="offer"><a href="/jobs/1">Go</a></div>
<div class="offer"><a href="/jobs/1">Go again</a></div>
<div class="offer">No link</div>
</body></html>`,
	}
	page := browsertest.NewPage(site)
	profile := domain.NewSiteProfile("example", base+"/")
	profile.JobsURL = jobsURL
	profile.Remember(domain.StepEntries, domain.Predicate{Strategy: domain.StrategyClass, Value: "offer"})
	o := &fakeOracle{}

	s := newSession(t, page, profile, o, nil, 0)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	els, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, base+"/jobs/1", els[0].Href)

	again, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestScriptedNavigator(t *testing.T) {
	site := browsertest.Site{
		loginURL:              loginHTML,
		homeURL:               `<html><body><button class="cookies">OK</button></body></html>`,
		jobsURL:               listHTML(1, true),
		base + "/jobs?page=2": listHTML(2, false),
	}
	page := browsertest.NewPage(site)
	page.OnClick("#go", func(p *browsertest.Page) { _ = p.Navigate(homeURL) })

	profile := domain.NewSiteProfile("example", loginURL)
	profile.JobsURL = jobsURL
	profile.Email = "me@example.com"
	profile.Password = "hunter2"

	reg := navigate.DefaultRegistry(nil, nil, navigate.Options{Sleep: noSleep}, nil)
	nav, err := reg.Build(navigate.KindSelectors, navigate.Target{
		Page:    page,
		Profile: profile,
		Selectors: map[string]string{
			"login:email":      "#email",
			"login:password":   "input[type=password]",
			"login:submit":     "#go",
			"entry-extraction": "li.offer",
			"next-page":        "a#next",
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, nav.Open(ctx))
	var total int
	for {
		els, err := nav.Entries(ctx)
		require.NoError(t, err)
		total += len(els)
		more, err := nav.NextPage(ctx)
		require.NoError(t, err)
		if !more {
			break
		}
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, navigate.Done, nav.State())
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	reg := navigate.DefaultRegistry(nil, nil, navigate.Options{}, nil)
	profile := domain.NewSiteProfile("example", base)

	_, err := reg.Build("ftp", navigate.Target{Profile: profile})
	require.ErrorIs(t, err, navigate.ErrUnknownKind)

	_, err = reg.Build(navigate.KindSelectors, navigate.Target{Profile: profile})
	require.Error(t, err)

	assert.Equal(t, []string{navigate.KindOracle, navigate.KindSelectors}, reg.Kinds())
}
