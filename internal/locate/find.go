package locate

import (
	"context"
	"errors"
	"fmt"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/metrics"
	"github.com/Korbielowski/AutoApply/internal/oracle"
)

const DefaultAttempts = 5

var ErrNotFound = errors.New("element not found")

// Finder ties the pieces together for one lookup: cached strategy first,
// then up to Attempts describe+resolve rounds.
type Finder struct {
	Describer *Describer
	Resolver  *Resolver
	Attempts  int
	Log       logger.Logger
}

// NewFinder wires a Finder around one oracle client.
func NewFinder(c oracle.Client, maxSnapshot, attempts int, allowPick bool, log logger.Logger) *Finder {
	log = logger.OrNop(log).With(logger.Component("locate"))
	return &Finder{
		Describer: &Describer{Oracle: c, MaxSnapshot: maxSnapshot, Log: log},
		Resolver: &Resolver{
			Verifier:  OracleVerifier{Oracle: c},
			Oracle:    c,
			AllowPick: allowPick,
			Log:       log,
		},
		Attempts: attempts,
		Log:      log,
	}
}

// Find locates the element for step. profile may be nil; when set, a cached
// predicate is tried first and a new winning predicate is remembered.
// Oracle-pick results are never cached since element refs do not survive a
// reload.
func (f *Finder) Find(ctx context.Context, page browser.Page, profile *domain.SiteProfile, step domain.StepKey, intent string) (Resolution, error) {
	log := logger.OrNop(f.Log).With(logger.String("step", string(step)))

	if profile != nil {
		res, ok, err := f.fromCache(ctx, page, profile, step, intent)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			metrics.Resolutions.WithLabelValues(string(res.Strategy), "cache").Inc()
			return res, nil
		}
	}

	attempts := f.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		desc, err := f.Describer.Describe(ctx, page, intent)
		if err != nil {
			if oracle.Fatal(err) || ctx.Err() != nil {
				return Resolution{}, err
			}
			log.Warn("describe failed", logger.Int("attempt", i), logger.Error(err))
			continue
		}
		if desc == nil {
			continue
		}

		res, ok, err := f.Resolver.Resolve(ctx, page, desc, intent)
		if err != nil {
			if oracle.Fatal(err) || ctx.Err() != nil {
				return Resolution{}, err
			}
			log.Warn("resolve failed", logger.Int("attempt", i), logger.Error(err))
			continue
		}
		if !ok {
			log.Debug("no verified candidate", logger.Int("attempt", i))
			continue
		}

		if profile != nil && res.Strategy != domain.StrategyPick {
			profile.Remember(step, res.Predicate())
		}
		metrics.Resolutions.WithLabelValues(string(res.Strategy), "oracle").Inc()
		return res, nil
	}

	metrics.Resolutions.WithLabelValues("none", "oracle").Inc()
	return Resolution{}, fmt.Errorf("%w: %s after %d attempts", ErrNotFound, step, attempts)
}

func (f *Finder) fromCache(ctx context.Context, page browser.Page, profile *domain.SiteProfile, step domain.StepKey, intent string) (Resolution, bool, error) {
	cached, ok := profile.Lookup(step)
	if !ok {
		return Resolution{}, false, nil
	}
	els, err := page.Query(ctx, cached.Predicate)
	if err != nil {
		return Resolution{}, false, err
	}
	if len(els) == 1 {
		verified, err := f.Resolver.Verifier.Verify(ctx, els[0], nil, intent)
		if err != nil && (oracle.Fatal(err) || ctx.Err() != nil) {
			return Resolution{}, false, err
		}
		if verified {
			profile.Remember(step, cached.Predicate)
			return Resolution{
				Element:  els[0],
				Strategy: cached.Strategy,
				Value:    cached.Value,
			}, true, nil
		}
	}
	if profile.RecordMiss(step) {
		logger.OrNop(f.Log).Info("cached strategy dropped",
			logger.String("step", string(step)),
			logger.String("predicate", cached.Predicate.String()))
	}
	return Resolution{}, false, nil
}
