package rank

import (
	"strings"

	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/domain"
)

const (
	ReasonLocation = "location"
	ReasonScore    = "low_score"
)

type Verdict struct {
	Keep   bool
	Reason string
	Score  int
	Tags   []string
}

// Prefilter scores job and rejects it when the location filters or
// scoring.min_score rule it out. A zero min_score disables the score check.
func Prefilter(cfg config.Config, job *domain.JobEntry) Verdict {
	score, tags := RuleScorer{Cfg: cfg}.Score(job)
	v := Verdict{Keep: true, Score: score, Tags: tags}

	switch {
	case !passesLocation(cfg, job):
		v.Keep, v.Reason = false, ReasonLocation
	case cfg.Scoring.MinScore != 0 && score < cfg.Scoring.MinScore:
		v.Keep, v.Reason = false, ReasonScore
	}
	return v
}

func passesLocation(cfg config.Config, job *domain.JobEntry) bool {
	loc := strings.ToLower(job.Location + " " + job.WorkArrangement)
	title := strings.ToLower(job.Title)
	isRemote := strings.Contains(loc, "remote") || strings.Contains(title, "remote")

	for _, b := range cfg.Filters.LocationsBlock {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" && (strings.Contains(loc, b) || strings.Contains(title, b)) {
			return false
		}
	}
	if isRemote {
		return cfg.Filters.AllowRemote()
	}

	allow := cfg.Filters.LocationsAllow
	if len(allow) == 0 {
		return true
	}
	return hit(loc, allow) || hit(title, allow)
}
