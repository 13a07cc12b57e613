package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/logger"
)

// stampScript numbers every element and flags the ones that are not
// rendered, then returns the highest ref in use.
const stampScript = `(() => {
  let n = window.__aaRef || 0;
  for (const el of document.querySelectorAll('body, body *')) {
    if (!el.hasAttribute('data-aa-ref')) el.setAttribute('data-aa-ref', String(++n));
    const st = window.getComputedStyle(el);
    const gone = st.display === 'none' || st.visibility === 'hidden' ||
      (el.tagName !== 'BODY' && el.getClientRects().length === 0);
    if (gone) el.setAttribute('data-aa-hidden', '1'); else el.removeAttribute('data-aa-hidden');
  }
  window.__aaRef = n;
  return n;
})()`

type ChromeOptions struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	Locale            string
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	// Settle is the extra pause after the load event for client-side
	// rendering.
	Settle time.Duration
}

type ChromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        ChromeOptions
	log         logger.Logger
}

// NewChrome starts a browser process. Close must be called to stop it.
func NewChrome(ctx context.Context, opts ChromeOptions, log logger.Logger) (*ChromeBrowser, error) {
	log = logger.OrNop(log).With(logger.Component("browser"))
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = 750 * time.Millisecond
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1366, 900),
	)
	if opts.Locale != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Locale))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	bctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	log.Info("browser started", logger.Bool("headless", opts.Headless))
	return &ChromeBrowser{ctx: bctx, cancel: cancel, allocCancel: allocCancel, opts: opts, log: log}, nil
}

// NewPage opens a tab. Closing the page closes the tab.
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tctx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tctx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromePage{ctx: tctx, cancel: cancel, opts: b.opts}, nil
}

func (b *ChromeBrowser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   ChromeOptions
	closed bool
}

// run executes actions on the tab, bounded by timeout and by the caller's
// ctx. A timeout is reported as ErrTimeout.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.closed {
		return ErrClosed
	}
	rctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.Location(&u))
	return u, err
}

func (p *chromePage) Goto(ctx context.Context, u string) error {
	if err := p.run(ctx, p.opts.NavigationTimeout, chromedp.Navigate(u)); err != nil {
		return fmt.Errorf("goto %s: %w", u, err)
	}
	return nil
}

func (p *chromePage) WaitStable(ctx context.Context) error {
	deadline := time.Now().Add(p.opts.NavigationTimeout)
	for {
		var state string
		if err := p.run(ctx, p.opts.ActionTimeout, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return err
		}
		if state == "complete" {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: document still %q", ErrTimeout, state)
		}
		if err := sleepCtx(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
	return sleepCtx(ctx, p.opts.Settle)
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var n int
	var out string
	err := p.run(ctx, p.opts.ActionTimeout,
		chromedp.Evaluate(stampScript, &n),
		chromedp.OuterHTML("html", &out, chromedp.ByQuery),
	)
	return out, err
}

func (p *chromePage) Query(ctx context.Context, pred domain.Predicate) ([]Element, error) {
	raw, err := p.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	cur, _ := p.URL(ctx)
	base, _ := url.Parse(cur)
	return Match(doc, pred, base), nil
}

func (p *chromePage) Click(ctx context.Context, el Element) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.Click(el.Ref, chromedp.ByQuery))
}

func (p *chromePage) Fill(ctx context.Context, el Element, value string) error {
	return p.run(ctx, p.opts.ActionTimeout,
		chromedp.Clear(el.Ref, chromedp.ByQuery),
		chromedp.SendKeys(el.Ref, value, chromedp.ByQuery),
	)
}

func (p *chromePage) ScrollIntoView(ctx context.Context, el Element) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.ScrollIntoView(el.Ref, chromedp.ByQuery))
}

func (p *chromePage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
