package config

import (
	"strings"
	"unicode"
)

// ApplyEnv overlays secrets and the data dir from the environment.
// getenv is os.Getenv outside of tests.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv("AUTOAPPLY_DATA_DIR")); v != "" {
		cfg.App.DataDir = v
	}
	if v := strings.TrimSpace(getenv("AUTOAPPLY_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}

	switch cfg.Oracle.Provider {
	case "anthropic":
		cfg.Oracle.APIKey = getenv("ANTHROPIC_API_KEY")
	default:
		cfg.Oracle.APIKey = getenv("OPENAI_API_KEY")
	}
	if v := getenv("AUTOAPPLY_ORACLE_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
}

// SiteEnvKey is the variable holding a site password, e.g.
// AUTOAPPLY_SITE_JUST_JOIN_IT_PASSWORD for "just-join.it".
func SiteEnvKey(site string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(site) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "AUTOAPPLY_SITE_" + b.String() + "_PASSWORD"
}
