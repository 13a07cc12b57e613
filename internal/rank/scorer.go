// Package rank scores extracted postings against keyword rules and filters
// them by location before the evaluation oracle is asked.
package rank

import (
	"strings"

	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/domain"
)

type Scorer interface {
	Score(job *domain.JobEntry) (score int, tags []string)
}

// RuleScorer adds the weight of every title/keyword rule with a needle in
// the posting and subtracts matching penalties.
type RuleScorer struct {
	Cfg config.Config
}

func (s RuleScorer) Score(job *domain.JobEntry) (int, []string) {
	title := strings.ToLower(job.Title)
	text := searchText(job)

	score := 0
	var tags []string
	apply := func(haystack string, rules []config.Rule) {
		for _, r := range rules {
			if hit(haystack, r.Any) {
				score += r.Weight
				if r.Tag != "" {
					tags = append(tags, r.Tag)
				}
			}
		}
	}
	apply(title, s.Cfg.Scoring.TitleRules)
	apply(text, s.Cfg.Scoring.KeywordRules)
	for _, p := range s.Cfg.Scoring.Penalties {
		if hit(text, p.Any) {
			score += p.Weight
		}
	}
	return score, uniq(tags)
}

func searchText(job *domain.JobEntry) string {
	return strings.ToLower(strings.Join([]string{
		job.Title, job.Requirements, job.Duties, job.AboutProject, job.WorkArrangement, job.Location,
	}, " "))
}

func hit(text string, needles []string) bool {
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func uniq(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
