package extract

import (
	"context"
	"strings"

	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/prompts"
)

type Evaluator interface {
	Evaluate(ctx context.Context, entry *domain.JobEntry) (bool, error)
}

// OracleEvaluator compares a posting with the candidate's needs. Anything
// but a clear yes is false.
type OracleEvaluator struct {
	Oracle oracle.Client
	Needs  string
}

func (e *OracleEvaluator) Evaluate(ctx context.Context, entry *domain.JobEntry) (bool, error) {
	if entry == nil {
		return false, nil
	}
	needs := strings.TrimSpace(e.Needs)
	if needs == "" {
		needs = "(no constraints given)"
	}
	prompt, err := prompts.Render("extract:evaluate", map[string]any{"Needs": needs, "Entry": entry})
	if err != nil {
		return false, err
	}
	return oracle.AskBool(ctx, e.Oracle, prompt)
}
