package locate

import (
	"context"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/prompts"
)

const maxPickCandidates = 20

// Resolution is a verified element and the predicate that found it.
type Resolution struct {
	Element   browser.Element
	Attribute string
	Strategy  domain.Strategy
	Value     string
}

func (r Resolution) Predicate() domain.Predicate {
	return domain.Predicate{Strategy: r.Strategy, Value: r.Value}
}

type Resolver struct {
	Verifier Verifier
	// Oracle is only used for the pick fallback.
	Oracle    oracle.Client
	AllowPick bool
	Log       logger.Logger
}

// Resolve narrows desc against the page. Attributes are tried in the fixed
// order of domain.ElementDescriptor.Attributes; each match set is
// intersected with the surviving set of earlier steps. A single candidate is
// verified and returned on success, or discarded for the rest of the call on
// failure. ok is false when nothing verified.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, desc *domain.ElementDescriptor, intent string) (Resolution, bool, error) {
	log := logger.OrNop(r.Log)
	if desc == nil {
		return Resolution{}, false, nil
	}

	var current []browser.Element
	rejected := map[string]bool{}

	for _, attr := range desc.Attributes() {
		matches, err := page.Query(ctx, attr.Predicate)
		if err != nil {
			return Resolution{}, false, err
		}
		matches = without(matches, rejected)
		if current != nil {
			matches = intersect(matches, current)
		}

		switch len(matches) {
		case 0:
			continue
		case 1:
			ok, err := r.Verifier.Verify(ctx, matches[0], desc, intent)
			if err != nil {
				return Resolution{}, false, err
			}
			if ok {
				log.Debug("element resolved",
					logger.String("intent", intent),
					logger.String("strategy", string(attr.Strategy)),
					logger.String("value", attr.Value))
				return Resolution{
					Element:   matches[0],
					Attribute: attr.Key,
					Strategy:  attr.Strategy,
					Value:     attr.Value,
				}, true, nil
			}
			rejected[matches[0].Ref] = true
			if current != nil {
				current = without(current, rejected)
			}
		default:
			current = matches
		}
	}

	if len(current) >= 2 && r.AllowPick && r.Oracle != nil {
		return r.pick(ctx, current, desc, intent)
	}
	return Resolution{}, false, nil
}

// pick asks the oracle to choose among candidates that no attribute could
// tell apart, then verifies the choice.
func (r *Resolver) pick(ctx context.Context, candidates []browser.Element, desc *domain.ElementDescriptor, intent string) (Resolution, bool, error) {
	if len(candidates) > maxPickCandidates {
		candidates = candidates[:maxPickCandidates]
	}
	prompt, err := prompts.Render("locate:pick", map[string]any{"Intent": intent, "Candidates": candidates})
	if err != nil {
		return Resolution{}, false, err
	}
	out, err := r.Oracle.Complete(ctx, oracle.Request{Prompt: prompt})
	if err != nil {
		return Resolution{}, false, err
	}
	i, ok := oracle.ParseIndex(out, len(candidates))
	if !ok {
		return Resolution{}, false, nil
	}
	verified, err := r.Verifier.Verify(ctx, candidates[i], desc, intent)
	if err != nil || !verified {
		return Resolution{}, false, err
	}
	return Resolution{Element: candidates[i], Strategy: domain.StrategyPick, Value: candidates[i].Ref}, true, nil
}

func without(els []browser.Element, drop map[string]bool) []browser.Element {
	out := els[:0:0]
	for _, e := range els {
		if !drop[e.Ref] {
			out = append(out, e)
		}
	}
	return out
}

func intersect(a, b []browser.Element) []browser.Element {
	in := make(map[string]bool, len(b))
	for _, e := range b {
		in[e.Ref] = true
	}
	out := a[:0:0]
	for _, e := range a {
		if in[e.Ref] {
			out = append(out, e)
		}
	}
	return out
}
