// Package browser drives remote pages. Element matching runs in Go over a
// snapshot of the DOM, so the live (chromedp) and static (browsertest)
// pages share one set of predicate semantics.
package browser

import (
	"context"
	"errors"

	"github.com/Korbielowski/AutoApply/internal/domain"
)

var (
	// ErrTimeout marks an action that did not complete in time; callers may
	// retry it.
	ErrTimeout = errors.New("browser action timed out")
	ErrClosed  = errors.New("page closed")
)

// RefAttr is stamped on every element so a match can be found again.
const RefAttr = "data-aa-ref"

// HiddenAttr is stamped by the live page on elements that are not rendered.
const HiddenAttr = "data-aa-hidden"

// Element is a handle to a matched element. Ref re-selects it as long as the
// document is not replaced.
type Element struct {
	Ref  string `json:"ref"`
	Tag  string `json:"tag"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
	HTML string `json:"-"`
}

func (e Element) Valid() bool { return e.Ref != "" }

type Page interface {
	URL(ctx context.Context) (string, error)
	Goto(ctx context.Context, url string) error
	// WaitStable blocks until the document finished loading.
	WaitStable(ctx context.Context) error
	// HTML returns the current document, including ref stamps.
	HTML(ctx context.Context) (string, error)
	Query(ctx context.Context, p domain.Predicate) ([]Element, error)
	Click(ctx context.Context, el Element) error
	Fill(ctx context.Context, el Element, value string) error
	ScrollIntoView(ctx context.Context, el Element) error
	Close() error
}

type Browser interface {
	NewPage(ctx context.Context) (Page, error)
}
