// Package browsertest provides an in-memory browser.Page over static HTML.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
)

// Site maps URLs to the HTML served for them.
type Site map[string]string

// Page is a static page. Clicking a link whose href is in the site
// navigates; other behaviour is attached with OnClick.
type Page struct {
	mu       sync.Mutex
	site     Site
	url      string
	doc      *goquery.Document
	handlers []handler

	// FailActions makes the next N clicks/fills return browser.ErrTimeout.
	FailActions int

	Clicks  []browser.Element
	Fills   map[string]string
	Scrolls []browser.Element
	Visited []string
	Closed  bool
}

type handler struct {
	selector string
	fn       func(p *Page)
}

func NewPage(site Site) *Page {
	return &Page{site: site, Fills: map[string]string{}}
}

// Load replaces the current document without going through the site map.
func (p *Page) Load(rawURL, html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(fmt.Sprintf("browsertest: bad html: %v", err))
	}
	browser.Stamp(doc)
	p.url = rawURL
	p.doc = doc
	p.Visited = append(p.Visited, rawURL)
}

// Navigate loads a URL from the site map.
func (p *Page) Navigate(rawURL string) error {
	html, ok := p.site[rawURL]
	if !ok {
		return fmt.Errorf("browsertest: no page for %s", rawURL)
	}
	p.Load(rawURL, html)
	return nil
}

// OnClick runs fn when an element matching the CSS selector is clicked.
// fn runs with the page locked, so it should only call Load or Navigate.
func (p *Page) OnClick(selector string, fn func(p *Page)) {
	p.handlers = append(p.handlers, handler{selector: selector, fn: fn})
}

func (p *Page) FilledValue(el browser.Element) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Fills[el.Ref]
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Goto(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return browser.ErrClosed
	}
	return p.Navigate(rawURL)
}

func (p *Page) WaitStable(ctx context.Context) error { return ctx.Err() }

func (p *Page) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "<html><body></body></html>", nil
	}
	return goquery.OuterHtml(p.doc.Selection.Children())
}

func (p *Page) Query(ctx context.Context, pred domain.Predicate) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, nil
	}
	base, _ := url.Parse(p.url)
	return browser.Match(p.doc, pred, base), nil
}

func (p *Page) find(el browser.Element) (*goquery.Selection, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("browsertest: no document")
	}
	s := p.doc.Find(el.Ref)
	if s.Length() == 0 {
		return nil, fmt.Errorf("%w: %s detached", browser.ErrTimeout, el.Ref)
	}
	return s, nil
}

func (p *Page) failing() bool {
	if p.FailActions > 0 {
		p.FailActions--
		return true
	}
	return false
}

func (p *Page) Click(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing() {
		return fmt.Errorf("%w: click %s", browser.ErrTimeout, el.Ref)
	}
	s, err := p.find(el)
	if err != nil {
		return err
	}
	p.Clicks = append(p.Clicks, el)

	for _, h := range p.handlers {
		if s.Is(h.selector) {
			h.fn(p)
			return nil
		}
	}
	if href := el.Href; href != "" && s.Is("a[href], a[href] *") {
		if _, ok := p.site[href]; ok {
			return p.Navigate(href)
		}
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, el browser.Element, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing() {
		return fmt.Errorf("%w: fill %s", browser.ErrTimeout, el.Ref)
	}
	s, err := p.find(el)
	if err != nil {
		return err
	}
	s.SetAttr("value", value)
	p.Fills[el.Ref] = value
	return nil
}

func (p *Page) ScrollIntoView(ctx context.Context, el browser.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.find(el); err != nil {
		return err
	}
	p.Scrolls = append(p.Scrolls, el)
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Browser hands out static pages backed by one site map.
type Browser struct {
	mu    sync.Mutex
	Site  Site
	Pages []*Page
}

func NewBrowser(site Site) *Browser { return &Browser{Site: site} }

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := NewPage(b.Site)
	b.Pages = append(b.Pages, p)
	return p, nil
}

// OpenPages counts pages that were not closed.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.Pages {
		p.mu.Lock()
		if !p.Closed {
			n++
		}
		p.mu.Unlock()
	}
	return n
}
