package locate

import (
	"context"
	"encoding/json"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/prompts"
)

// Verifier confirms that a single candidate is the element the intent
// describes.
type Verifier interface {
	Verify(ctx context.Context, el browser.Element, desc *domain.ElementDescriptor, intent string) (bool, error)
}

type OracleVerifier struct {
	Oracle oracle.Client
}

// Verify answers true only for an explicit true from the oracle. desc may
// be nil when the candidate came from the strategy cache.
func (v OracleVerifier) Verify(ctx context.Context, el browser.Element, desc *domain.ElementDescriptor, intent string) (bool, error) {
	descJSON := []byte("null")
	if desc != nil {
		if b, err := json.Marshal(desc); err == nil {
			descJSON = b
		}
	}
	prompt, err := prompts.Render("locate:verify", map[string]any{
		"Intent":     intent,
		"Element":    el,
		"Descriptor": string(descJSON),
	})
	if err != nil {
		return false, err
	}
	return oracle.AskBool(ctx, v.Oracle, prompt)
}
