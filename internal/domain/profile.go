package domain

import (
	"strings"
	"time"
)

// StepKey identifies one cached element lookup. The part before ':' is the
// step name (login, consent, list-navigation, next-page, entry-extraction).
type StepKey string

const (
	StepLoginOpen       StepKey = "login:open"
	StepLoginEmail      StepKey = "login:email"
	StepLoginPassword   StepKey = "login:password"
	StepLoginSubmit     StepKey = "login:submit"
	StepLoginCode       StepKey = "login:code"
	StepLoginCodeSubmit StepKey = "login:code-submit"
	StepConsent         StepKey = "consent"
	StepListOpen        StepKey = "list-navigation:open"
	StepListBottom      StepKey = "list-navigation:bottom"
	StepNextPage        StepKey = "next-page"
	StepEntries         StepKey = "entry-extraction"
)

func (k StepKey) Step() string {
	s, _, _ := strings.Cut(string(k), ":")
	return s
}

type CachedStrategy struct {
	Predicate
	Failures  int       `json:"failures"`
	UpdatedAt time.Time `json:"updated_at"`
}

const DefaultCacheFailureLimit = 2

// SiteProfile is the per-site automation state for one session: credentials
// plus strategies that worked before.
type SiteProfile struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	JobsURL string `json:"jobs_url,omitempty"`
	Email   string `json:"email,omitempty"`

	Password string `json:"-"`

	Steps        map[StepKey]CachedStrategy `json:"steps"`
	FailureLimit int                        `json:"-"`

	dirty bool
}

func NewSiteProfile(name, url string) *SiteProfile {
	return &SiteProfile{
		Name:         name,
		URL:          url,
		Steps:        map[StepKey]CachedStrategy{},
		FailureLimit: DefaultCacheFailureLimit,
	}
}

func (p *SiteProfile) HasCredentials() bool {
	return strings.TrimSpace(p.Email) != "" && p.Password != ""
}

func (p *SiteProfile) Lookup(k StepKey) (CachedStrategy, bool) {
	c, ok := p.Steps[k]
	return c, ok
}

// Remember stores a working predicate and clears its failure count.
func (p *SiteProfile) Remember(k StepKey, pred Predicate) {
	if p.Steps == nil {
		p.Steps = map[StepKey]CachedStrategy{}
	}
	if c, ok := p.Steps[k]; ok && c.Predicate == pred && c.Failures == 0 {
		return
	}
	p.Steps[k] = CachedStrategy{Predicate: pred, UpdatedAt: time.Now().UTC()}
	p.dirty = true
}

// RecordMiss counts a failed reuse and forgets the strategy once the limit
// is reached. It reports whether the entry was dropped.
func (p *SiteProfile) RecordMiss(k StepKey) bool {
	c, ok := p.Steps[k]
	if !ok {
		return false
	}
	limit := p.FailureLimit
	if limit <= 0 {
		limit = DefaultCacheFailureLimit
	}
	p.dirty = true
	c.Failures++
	if c.Failures >= limit {
		delete(p.Steps, k)
		return true
	}
	p.Steps[k] = c
	return false
}

func (p *SiteProfile) Dirty() bool { return p.dirty }
func (p *SiteProfile) MarkClean()  { p.dirty = false }
