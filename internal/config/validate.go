package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var (
	providers     = map[string]bool{"openai": true, "anthropic": true}
	siteKinds     = map[string]bool{"oracle": true, "selectors": true}
	documentModes = map[string]bool{
		"llm-generation":    true,
		"llm-selection":     true,
		"no-llm-generation": true,
		"user-specified":    true,
	}
	// Steps a selectors site must describe.
	requiredSelectors = []string{"entry-extraction"}
)

func trimList(xs []string) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		key := strings.ToLower(x)
		if seen[key] {
			continue
		}
		seen[key] = true
		ys = append(ys, x)
	}
	return ys
}

// NormalizeAndValidate returns a normalized copy of cfg plus soft/hard findings.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.Filters.LocationsAllow = trimList(out.Filters.LocationsAllow)
	out.Filters.LocationsBlock = trimList(out.Filters.LocationsBlock)
	out.Candidate.Needs = strings.TrimSpace(out.Candidate.Needs)
	out.Oracle.Provider = strings.ToLower(strings.TrimSpace(out.Oracle.Provider))
	out.Pipeline.DocumentMode = strings.ToLower(strings.TrimSpace(out.Pipeline.DocumentMode))

	if !providers[out.Oracle.Provider] {
		res.addErr("oracle.provider must be openai or anthropic, got %q", out.Oracle.Provider)
	}
	if strings.TrimSpace(out.Oracle.Model) == "" {
		res.addErr("oracle.model is required")
	}
	if out.Oracle.MaxRetries < 0 {
		res.addErr("oracle.max_retries must be >= 0")
	}
	if out.Oracle.Temperature < 0 || out.Oracle.Temperature > 2 {
		res.addErr("oracle.temperature must be within 0..2")
	}
	if out.Oracle.RequestsPerMinute > 0 && out.Oracle.RequestsPerMinute < 5 {
		res.addWarn("oracle.requests_per_minute is very low (%d); a single page needs several calls.", out.Oracle.RequestsPerMinute)
	}

	if out.Locate.MaxAttempts <= 0 {
		res.addErr("locate.max_attempts must be > 0")
	}
	if out.Pipeline.MaxPages <= 0 {
		res.addErr("pipeline.max_pages must be > 0")
	}
	if !documentModes[out.Pipeline.DocumentMode] {
		res.addErr("pipeline.document_mode %q is not one of llm-generation, llm-selection, no-llm-generation, user-specified", out.Pipeline.DocumentMode)
	}
	if out.Pipeline.DocumentMode == "user-specified" && strings.TrimSpace(out.Documents.UserCVPath) == "" {
		res.addErr("documents.user_cv_path is required when pipeline.document_mode=user-specified")
	}
	for i, p := range out.Scoring.Penalties {
		if p.Weight > 0 {
			res.addErr("scoring.penalties[%d].weight must be <= 0, got %d", i, p.Weight)
		}
	}
	if out.Candidate.Needs == "" {
		res.addWarn("candidate.needs is empty; every posting will be evaluated against nothing.")
	}

	if !out.Filters.AllowRemote() {
		res.addWarn("remote_ok is false; remote postings will be skipped before evaluation.")
	}
	blockSet := map[string]bool{}
	for _, b := range out.Filters.LocationsBlock {
		blockSet[strings.ToLower(b)] = true
	}
	for _, a := range out.Filters.LocationsAllow {
		if blockSet[strings.ToLower(a)] {
			res.addWarn("location appears in both allow and block: %q", a)
		}
	}

	names := map[string]bool{}
	enabled := 0
	for i := range out.Sites {
		s := &out.Sites[i]
		s.Name = strings.TrimSpace(s.Name)
		s.URL = strings.TrimSpace(s.URL)
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))

		if s.Name == "" {
			res.addErr("sites[%d].name is required", i)
		} else if names[strings.ToLower(s.Name)] {
			res.addErr("sites[%d].name %q is duplicated", i, s.Name)
		}
		names[strings.ToLower(s.Name)] = true

		if u, err := url.Parse(s.URL); err != nil || u.Scheme == "" || u.Host == "" {
			res.addErr("sites[%d].url must be an absolute URL", i)
		}
		if !siteKinds[s.Kind] {
			res.addErr("sites[%d].kind must be oracle or selectors", i)
		}
		if s.Kind == "selectors" {
			for _, step := range requiredSelectors {
				if strings.TrimSpace(s.Selectors[step]) == "" {
					res.addErr("sites[%d].selectors.%s is required for kind=selectors", i, step)
				}
			}
		}
		if s.Email == "" {
			res.addWarn("sites[%d] (%s) has no email; login will be skipped.", i, s.Name)
		}
		if v := s.Verification; v.Enabled {
			if strings.TrimSpace(v.IMAPHost) == "" {
				res.addErr("sites[%d].verification.imap_host is required when enabled", i)
			}
			if strings.TrimSpace(v.Username) == "" {
				res.addErr("sites[%d].verification.username is required when enabled", i)
			}
		}
		if !s.Disabled {
			enabled++
		}
	}
	if enabled == 0 {
		res.addWarn("no sites enabled; runs will finish immediately.")
	}

	return out, res
}
