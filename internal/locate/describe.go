// Package locate finds page elements from a natural-language intent: the
// oracle describes the element, the descriptor is narrowed against the DOM
// attribute by attribute, and every single candidate is confirmed by the
// oracle before it is used.
package locate

import (
	"context"
	"errors"
	"fmt"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/prompts"
)

var descriptorSchema = oracle.MustSchema("element_descriptor", domain.ElementDescriptor{})

// Snapshot returns the page HTML cleaned for an oracle prompt.
func Snapshot(ctx context.Context, page browser.Page, maxBytes int) (string, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return browser.CleanHTML(raw, maxBytes)
}

type Describer struct {
	Oracle      oracle.Client
	MaxSnapshot int
	Log         logger.Logger
}

// Describe asks the oracle for the attributes of the element matching
// intent. A malformed answer yields (nil, nil); only transport and page
// errors are returned. The page is not modified.
func (d *Describer) Describe(ctx context.Context, page browser.Page, intent string) (*domain.ElementDescriptor, error) {
	log := logger.OrNop(d.Log)
	html, err := Snapshot(ctx, page, d.MaxSnapshot)
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.Render("locate:describe", map[string]any{"Intent": intent, "HTML": html})
	if err != nil {
		return nil, err
	}

	out, err := d.Oracle.Complete(ctx, oracle.Request{Prompt: prompt, Schema: descriptorSchema})
	if err != nil {
		return nil, err
	}
	desc, err := domain.DecodeDescriptor(oracle.ExtractJSON(out))
	if err != nil {
		if errors.Is(err, domain.ErrMalformed) {
			log.Debug("descriptor rejected", logger.String("intent", intent), logger.Error(err))
			return nil, nil
		}
		return nil, err
	}
	return desc, nil
}
