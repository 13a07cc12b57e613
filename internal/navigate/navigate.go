// Package navigate drives a site from its start page to the job list and
// through the list's pages.
package navigate

import (
	"context"
	"errors"
	"time"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/retry"
)

type State int

const (
	Start State = iota
	ConsentHandled
	AuthenticationPage
	Authenticated
	ListVisible
	Paginating
	Done
	Failed
)

var stateNames = [...]string{
	Start:              "start",
	ConsentHandled:     "consent-handled",
	AuthenticationPage: "authentication-page",
	Authenticated:      "authenticated",
	ListVisible:        "list-visible",
	Paginating:         "paginating",
	Done:               "done",
	Failed:             "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var (
	// ErrLoginFields means one of email, password or submit could not be
	// resolved. Nothing was filled.
	ErrLoginFields = errors.New("login fields not found")
	// ErrVerification means a requested e-mail code could not be entered.
	ErrVerification = errors.New("login verification failed")
	// ErrNavigation means a page could not be loaded.
	ErrNavigation = errors.New("navigation failed")
)

// Navigator is the per-site capability set the pipeline drives.
type Navigator interface {
	// Open moves from Start to ListVisible, handling consent and login.
	Open(ctx context.Context) error
	// Entries returns the job entries of the current list page that were
	// not returned before.
	Entries(ctx context.Context) ([]browser.Element, error)
	// NextPage advances the list; false means there are no more pages.
	NextPage(ctx context.Context) (bool, error)
	State() State
	Profile() *domain.SiteProfile
}

// CodeSource delivers e-mailed login codes received after since.
type CodeSource interface {
	Code(ctx context.Context, since time.Time) (string, error)
}

const actionAttempts = 3

// ActionPolicy retries browser actions that timed out.
func ActionPolicy(delay time.Duration) retry.Policy {
	return retry.Fixed{
		Delay:      delay,
		MaxRetries: actionAttempts - 1,
		Retryable: func(err error) bool {
			return errors.Is(err, browser.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
		},
	}
}

// Options shared by navigator implementations.
type Options struct {
	// MaxPages caps visited list pages; 0 means unlimited.
	MaxPages int
	// Policy and Sleep govern action retries.
	Policy retry.Policy
	Sleep  retry.Sleeper
	// MaxSnapshot bounds HTML shown to the oracle.
	MaxSnapshot int
}

func (o Options) policy() retry.Policy {
	if o.Policy != nil {
		return o.Policy
	}
	return ActionPolicy(time.Second)
}

// pager carries what both navigators share: the page, action retries,
// pagination bookkeeping and href dedupe.
type pager struct {
	page    browser.Page
	profile *domain.SiteProfile
	opts    Options
	state   State
	pages   int
	seen    map[string]bool
}

func newPager(page browser.Page, profile *domain.SiteProfile, opts Options) pager {
	return pager{page: page, profile: profile, opts: opts, seen: map[string]bool{}}
}

func (p *pager) State() State                 { return p.state }
func (p *pager) Profile() *domain.SiteProfile { return p.profile }

func (p *pager) act(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.opts.policy(), p.opts.Sleep, fn)
}

func (p *pager) goTo(ctx context.Context, url string) error {
	err := p.act(ctx, func(ctx context.Context) error { return p.page.Goto(ctx, url) })
	if err != nil {
		return errors.Join(ErrNavigation, err)
	}
	return p.settle(ctx)
}

func (p *pager) click(ctx context.Context, el browser.Element) error {
	if err := p.act(ctx, func(ctx context.Context) error { return p.page.Click(ctx, el) }); err != nil {
		return err
	}
	return p.settle(ctx)
}

func (p *pager) fill(ctx context.Context, el browser.Element, value string) error {
	return p.act(ctx, func(ctx context.Context) error { return p.page.Fill(ctx, el, value) })
}

// settle waits for the page to stop loading. Only cancellation is an error.
func (p *pager) settle(ctx context.Context) error {
	if err := p.page.WaitStable(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (p *pager) fail(err error) error {
	p.state = Failed
	return err
}

// fresh drops entries without a link and entries already returned.
func (p *pager) fresh(els []browser.Element) []browser.Element {
	var out []browser.Element
	for _, el := range els {
		key := domain.CanonicalURL(el.Href)
		if key == "" || p.seen[key] {
			continue
		}
		p.seen[key] = true
		out = append(out, el)
	}
	return out
}

// lastPage reports whether MaxPages pages have been visited.
func (p *pager) lastPage() bool {
	return p.opts.MaxPages > 0 && p.pages >= p.opts.MaxPages
}
