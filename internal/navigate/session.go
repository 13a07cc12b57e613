package navigate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/locate"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/prompts"
)

const (
	intentConsent    = "button that accepts all cookies or closes the cookie consent banner"
	intentLoginOpen  = "button or link that opens the login / sign-in page"
	intentEmail      = "text field for the e-mail address or username on the login form"
	intentPassword   = "password field on the login form"
	intentSubmit     = "button that submits the login form"
	intentCode       = "text field for the verification code sent by e-mail"
	intentCodeSubmit = "button that confirms the verification code"
	intentListOpen   = "link or button that opens the list of job offers"
	intentListBottom = "element at the very bottom of the job offer list, such as the footer or a load-more marker"
	intentNextPage   = "button or link that goes to the next page of job offers"
	intentEntry      = "a single job offer in the list of job offers"

	classSamples = 5
)

var (
	loginURLHints     = []string{"login", "signin", "sign-in", "sign_in", "logon", "auth"}
	challengeURLHints = []string{"checkpoint", "challenge", "verify", "2fa"}
)

// Session navigates a site it has never seen, finding every control through
// the oracle-backed locate.Finder.
type Session struct {
	pager
	finder *locate.Finder
	oracle oracle.Client
	codes  CodeSource
	log    logger.Logger
	now    func() time.Time
}

// NewSession builds an oracle-driven navigator. codes may be nil when the
// site does not send e-mail verification codes.
func NewSession(page browser.Page, profile *domain.SiteProfile, finder *locate.Finder, c oracle.Client, codes CodeSource, opts Options, log logger.Logger) *Session {
	return &Session{
		pager:  newPager(page, profile, opts),
		finder: finder,
		oracle: c,
		codes:  codes,
		log:    logger.OrNop(log).With(logger.String("site", profile.Name)),
		now:    time.Now,
	}
}

func (s *Session) find(ctx context.Context, step domain.StepKey, intent string) (locate.Resolution, error) {
	return s.finder.Find(ctx, s.page, s.profile, step, intent)
}

// findOptional treats a missing element as ok == false.
func (s *Session) findOptional(ctx context.Context, step domain.StepKey, intent string) (locate.Resolution, bool, error) {
	res, err := s.find(ctx, step, intent)
	if errors.Is(err, locate.ErrNotFound) {
		s.log.Info("optional element absent", logger.String("step", string(step)))
		return res, false, nil
	}
	if err != nil {
		return res, false, err
	}
	return res, true, nil
}

func (s *Session) Open(ctx context.Context) error {
	if err := s.goTo(ctx, s.profile.URL); err != nil {
		return s.fail(err)
	}

	if err := s.consent(ctx); err != nil {
		return s.fail(err)
	}
	s.state = ConsentHandled

	if s.profile.HasCredentials() {
		if err := s.login(ctx); err != nil {
			return s.fail(err)
		}
	} else {
		s.log.Info("no credentials configured, skipping login")
	}
	s.state = Authenticated

	if err := s.openList(ctx); err != nil {
		return s.fail(err)
	}
	s.state = ListVisible
	s.pages = 1
	return nil
}

func (s *Session) consent(ctx context.Context) error {
	res, ok, err := s.findOptional(ctx, domain.StepConsent, intentConsent)
	if err != nil || !ok {
		return err
	}
	if err := s.click(ctx, res.Element); err != nil {
		s.log.Warn("consent click failed", logger.Error(err))
	}
	return nil
}

func (s *Session) login(ctx context.Context) error {
	onLogin, err := s.onLoginPage(ctx)
	if err != nil {
		return err
	}
	if !onLogin {
		res, ok, err := s.findOptional(ctx, domain.StepLoginOpen, intentLoginOpen)
		if err != nil {
			return err
		}
		if ok {
			if err := s.click(ctx, res.Element); err != nil {
				return fmt.Errorf("open login page: %w", err)
			}
		}
	}
	s.state = AuthenticationPage

	var missing []string
	fields := map[domain.StepKey]locate.Resolution{}
	for _, f := range []struct {
		step   domain.StepKey
		intent string
	}{
		{domain.StepLoginEmail, intentEmail},
		{domain.StepLoginPassword, intentPassword},
		{domain.StepLoginSubmit, intentSubmit},
	} {
		res, err := s.find(ctx, f.step, f.intent)
		switch {
		case errors.Is(err, locate.ErrNotFound):
			missing = append(missing, string(f.step))
		case err != nil:
			return err
		default:
			fields[f.step] = res
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrLoginFields, strings.Join(missing, ", "))
	}

	if err := s.fill(ctx, fields[domain.StepLoginEmail].Element, s.profile.Email); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := s.fill(ctx, fields[domain.StepLoginPassword].Element, s.profile.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	submitted := s.now()
	if err := s.click(ctx, fields[domain.StepLoginSubmit].Element); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	s.log.Info("login submitted")

	if s.codes != nil {
		return s.verify(ctx, submitted)
	}
	return nil
}

func (s *Session) onLoginPage(ctx context.Context) (bool, error) {
	u, _ := s.page.URL(ctx)
	if containsAny(u, loginURLHints) {
		return true, nil
	}
	return s.ask(ctx, "navigate:login_page", u)
}

func (s *Session) verify(ctx context.Context, since time.Time) error {
	u, _ := s.page.URL(ctx)
	challenged := containsAny(u, challengeURLHints)
	if !challenged {
		var err error
		if challenged, err = s.ask(ctx, "navigate:verification_page", u); err != nil {
			return err
		}
	}
	if !challenged {
		return nil
	}

	field, err := s.find(ctx, domain.StepLoginCode, intentCode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	code, err := s.codes.Code(ctx, since)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if err := s.fill(ctx, field.Element, code); err != nil {
		return fmt.Errorf("%w: fill code: %v", ErrVerification, err)
	}
	submit, err := s.find(ctx, domain.StepLoginCodeSubmit, intentCodeSubmit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if err := s.click(ctx, submit.Element); err != nil {
		return fmt.Errorf("%w: submit code: %v", ErrVerification, err)
	}
	s.log.Info("verification code submitted")
	return nil
}

// ask puts a yes/no question about the current page to the oracle.
func (s *Session) ask(ctx context.Context, key, pageURL string) (bool, error) {
	html, err := locate.Snapshot(ctx, s.page, s.opts.MaxSnapshot)
	if err != nil {
		return false, err
	}
	prompt, err := prompts.Render(key, map[string]any{"URL": pageURL, "HTML": html})
	if err != nil {
		return false, err
	}
	return oracle.AskBool(ctx, s.oracle, prompt)
}

func (s *Session) openList(ctx context.Context) error {
	if s.profile.JobsURL != "" {
		return s.goTo(ctx, s.profile.JobsURL)
	}
	res, ok, err := s.findOptional(ctx, domain.StepListOpen, intentListOpen)
	if err != nil || !ok {
		return err
	}
	if err := s.click(ctx, res.Element); err != nil {
		s.log.Warn("open job list failed", logger.Error(err))
	}
	return nil
}

func (s *Session) Entries(ctx context.Context) ([]browser.Element, error) {
	if s.state != ListVisible && s.state != Paginating {
		return nil, fmt.Errorf("entries requested in state %s", s.state)
	}
	s.state = Paginating

	bottom, ok, err := s.findOptional(ctx, domain.StepListBottom, intentListBottom)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := s.act(ctx, func(ctx context.Context) error { return s.page.ScrollIntoView(ctx, bottom.Element) }); err != nil {
			s.log.Warn("scroll to list bottom failed", logger.Error(err))
		}
		if err := s.settle(ctx); err != nil {
			return nil, err
		}
	}

	pred, ok, err := s.entryPredicate(ctx)
	if err != nil || !ok {
		return nil, err
	}
	els, err := s.page.Query(ctx, pred)
	if err != nil {
		return nil, err
	}
	out := s.fresh(els)
	s.log.Info("entries found",
		logger.Int("page", s.pages),
		logger.Int("matched", len(els)),
		logger.Int("new", len(out)))
	return out, nil
}

// entryPredicate finds a class that selects exactly the job entries. The
// cached class is reused while it still matches something.
func (s *Session) entryPredicate(ctx context.Context) (domain.Predicate, bool, error) {
	if cached, ok := s.profile.Lookup(domain.StepEntries); ok {
		els, err := s.page.Query(ctx, cached.Predicate)
		if err != nil {
			return domain.Predicate{}, false, err
		}
		if len(els) > 0 {
			return cached.Predicate, true, nil
		}
		s.profile.RecordMiss(domain.StepEntries)
	}

	attempts := s.finder.Attempts
	if attempts <= 0 {
		attempts = locate.DefaultAttempts
	}
	for i := 0; i < attempts; i++ {
		desc, err := s.finder.Describer.Describe(ctx, s.page, intentEntry)
		if err != nil {
			if oracle.Fatal(err) || ctx.Err() != nil {
				return domain.Predicate{}, false, err
			}
			continue
		}
		if desc == nil {
			continue
		}
		for _, class := range desc.ClassList {
			pred := domain.Predicate{Strategy: domain.StrategyClass, Value: class}
			ok, err := s.confirmClass(ctx, pred)
			if err != nil {
				return domain.Predicate{}, false, err
			}
			if ok {
				s.profile.Remember(domain.StepEntries, pred)
				return pred, true, nil
			}
		}
	}
	s.log.Warn("no entry class confirmed")
	return domain.Predicate{}, false, nil
}

func (s *Session) confirmClass(ctx context.Context, pred domain.Predicate) (bool, error) {
	els, err := s.page.Query(ctx, pred)
	if err != nil || len(els) == 0 {
		return false, err
	}
	samples := make([]string, 0, classSamples)
	for _, el := range els[:min(classSamples, len(els))] {
		samples = append(samples, el.Text)
	}
	prompt, err := prompts.Render("navigate:entries_class", map[string]any{"Class": pred.Value, "Samples": samples})
	if err != nil {
		return false, err
	}
	return oracle.AskBool(ctx, s.oracle, prompt)
}

func (s *Session) NextPage(ctx context.Context) (bool, error) {
	if s.state != Paginating && s.state != ListVisible {
		return false, nil
	}
	if s.lastPage() {
		s.state = Done
		return false, nil
	}
	res, ok, err := s.findOptional(ctx, domain.StepNextPage, intentNextPage)
	if err != nil {
		return false, s.fail(err)
	}
	if !ok {
		s.state = Done
		return false, nil
	}
	if err := s.click(ctx, res.Element); err != nil {
		s.log.Warn("next page click failed", logger.Error(err))
		s.state = Done
		return false, nil
	}
	s.pages++
	s.state = Paginating
	return true, nil
}

func containsAny(s string, subs []string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
