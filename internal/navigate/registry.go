package navigate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/locate"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/oracle"
)

const (
	KindOracle    = "oracle"
	KindSelectors = "selectors"
)

var ErrUnknownKind = errors.New("unknown navigator kind")

// Target is one site session to build a navigator for.
type Target struct {
	Page      browser.Page
	Profile   *domain.SiteProfile
	Selectors map[string]string
	// Codes is nil unless the site sends e-mail verification codes.
	Codes CodeSource
}

type Builder func(t Target) (Navigator, error)

// Registry maps a site kind to the navigator that handles it.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: map[string]Builder{}}
}

func (r *Registry) Register(kind string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = b
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for k := range r.builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build returns a navigator for kind; an empty kind means KindOracle.
func (r *Registry) Build(kind string, t Target) (Navigator, error) {
	if kind == "" {
		kind = KindOracle
	}
	r.mu.RLock()
	b, ok := r.builders[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return b(t)
}

// DefaultRegistry registers the oracle Session and the Scripted navigator.
func DefaultRegistry(finder *locate.Finder, c oracle.Client, opts Options, log logger.Logger) *Registry {
	r := NewRegistry()
	r.Register(KindOracle, func(t Target) (Navigator, error) {
		return NewSession(t.Page, t.Profile, finder, c, t.Codes, opts, log), nil
	})
	r.Register(KindSelectors, func(t Target) (Navigator, error) {
		if t.Selectors[string(domain.StepEntries)] == "" {
			return nil, fmt.Errorf("site %s: selectors kind needs a %q selector", t.Profile.Name, domain.StepEntries)
		}
		return NewScripted(t.Page, t.Profile, t.Selectors, t.Codes, opts, log), nil
	})
	return r
}
