package navigate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/logger"
)

// Scripted navigates a known site with CSS selectors keyed by step
// (e.g. "login:email", "entry-extraction"). It never asks the oracle.
type Scripted struct {
	pager
	selectors map[domain.StepKey]string
	codes     CodeSource
	log       logger.Logger
}

func NewScripted(page browser.Page, profile *domain.SiteProfile, selectors map[string]string, codes CodeSource, opts Options, log logger.Logger) *Scripted {
	sel := make(map[domain.StepKey]string, len(selectors))
	for k, v := range selectors {
		if v = strings.TrimSpace(v); v != "" {
			sel[domain.StepKey(strings.TrimSpace(k))] = v
		}
	}
	return &Scripted{
		pager:     newPager(page, profile, opts),
		selectors: sel,
		codes:     codes,
		log:       logger.OrNop(log).With(logger.String("site", profile.Name)),
	}
}

// first returns the first element matching the step's selector.
func (s *Scripted) first(ctx context.Context, step domain.StepKey) (browser.Element, bool, error) {
	css, ok := s.selectors[step]
	if !ok {
		return browser.Element{}, false, nil
	}
	els, err := s.page.Query(ctx, domain.Predicate{Strategy: domain.StrategyCSS, Value: css})
	if err != nil || len(els) == 0 {
		return browser.Element{}, false, err
	}
	return els[0], true, nil
}

func (s *Scripted) clickIf(ctx context.Context, step domain.StepKey) error {
	el, ok, err := s.first(ctx, step)
	if err != nil || !ok {
		return err
	}
	return s.click(ctx, el)
}

func (s *Scripted) Open(ctx context.Context) error {
	if err := s.goTo(ctx, s.profile.URL); err != nil {
		return s.fail(err)
	}
	if err := s.clickIf(ctx, domain.StepConsent); err != nil {
		s.log.Warn("consent click failed", logger.Error(err))
	}
	s.state = ConsentHandled

	if s.profile.HasCredentials() {
		if err := s.login(ctx); err != nil {
			return s.fail(err)
		}
	}
	s.state = Authenticated

	if s.profile.JobsURL != "" {
		if err := s.goTo(ctx, s.profile.JobsURL); err != nil {
			return s.fail(err)
		}
	} else if err := s.clickIf(ctx, domain.StepListOpen); err != nil {
		s.log.Warn("open job list failed", logger.Error(err))
	}
	s.state = ListVisible
	s.pages = 1
	return nil
}

func (s *Scripted) login(ctx context.Context) error {
	if err := s.clickIf(ctx, domain.StepLoginOpen); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	s.state = AuthenticationPage

	var els [3]browser.Element
	var missing []string
	for i, step := range []domain.StepKey{domain.StepLoginEmail, domain.StepLoginPassword, domain.StepLoginSubmit} {
		el, ok, err := s.first(ctx, step)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, string(step))
		}
		els[i] = el
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrLoginFields, strings.Join(missing, ", "))
	}

	if err := s.fill(ctx, els[0], s.profile.Email); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := s.fill(ctx, els[1], s.profile.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	submitted := time.Now()
	if err := s.click(ctx, els[2]); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	if s.codes == nil {
		return nil
	}
	field, ok, err := s.first(ctx, domain.StepLoginCode)
	if err != nil || !ok {
		return err
	}
	code, err := s.codes.Code(ctx, submitted)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if err := s.fill(ctx, field, code); err != nil {
		return fmt.Errorf("%w: fill code: %v", ErrVerification, err)
	}
	if err := s.clickIf(ctx, domain.StepLoginCodeSubmit); err != nil {
		return fmt.Errorf("%w: submit code: %v", ErrVerification, err)
	}
	return nil
}

func (s *Scripted) Entries(ctx context.Context) ([]browser.Element, error) {
	if s.state != ListVisible && s.state != Paginating {
		return nil, fmt.Errorf("entries requested in state %s", s.state)
	}
	s.state = Paginating

	if el, ok, err := s.first(ctx, domain.StepListBottom); err == nil && ok {
		if err := s.act(ctx, func(ctx context.Context) error { return s.page.ScrollIntoView(ctx, el) }); err != nil {
			s.log.Warn("scroll to list bottom failed", logger.Error(err))
		}
		if err := s.settle(ctx); err != nil {
			return nil, err
		}
	}

	css := s.selectors[domain.StepEntries]
	els, err := s.page.Query(ctx, domain.Predicate{Strategy: domain.StrategyCSS, Value: css})
	if err != nil {
		return nil, err
	}
	return s.fresh(els), nil
}

func (s *Scripted) NextPage(ctx context.Context) (bool, error) {
	if s.state != Paginating && s.state != ListVisible {
		return false, nil
	}
	if s.lastPage() {
		s.state = Done
		return false, nil
	}
	el, ok, err := s.first(ctx, domain.StepNextPage)
	if err != nil {
		return false, s.fail(err)
	}
	if !ok {
		s.state = Done
		return false, nil
	}
	if err := s.click(ctx, el); err != nil {
		s.log.Warn("next page click failed", logger.Error(err))
		s.state = Done
		return false, nil
	}
	s.pages++
	s.state = Paginating
	return true, nil
}
