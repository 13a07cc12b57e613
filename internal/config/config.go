package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Rule struct {
	Tag    string   `yaml:"tag" json:"tag"`
	Weight int      `yaml:"weight" json:"weight"`
	Any    []string `yaml:"any" json:"any"`
}

type Penalty struct {
	Reason string   `yaml:"reason" json:"reason"`
	Weight int      `yaml:"weight" json:"weight"`
	Any    []string `yaml:"any" json:"any"`
}

type OracleConfig struct {
	Provider          string  `yaml:"provider" json:"provider"` // openai | anthropic
	Model             string  `yaml:"model" json:"model"`
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	Temperature       float64 `yaml:"temperature" json:"temperature"`
	MaxRetries        int     `yaml:"max_retries" json:"max_retries"`
	RetryDelaySeconds int     `yaml:"retry_delay_seconds" json:"retry_delay_seconds"`
	RequestsPerMinute int     `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxSnapshotBytes  int     `yaml:"max_snapshot_bytes" json:"max_snapshot_bytes"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" json:"timeout_seconds"`

	// APIKey only ever comes from the environment.
	APIKey string `yaml:"-" json:"-"`
}

func (o OracleConfig) RetryDelay() time.Duration {
	return time.Duration(o.RetryDelaySeconds) * time.Second
}

func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

type BrowserConfig struct {
	Headless                 bool    `yaml:"headless" json:"headless"`
	ExecPath                 string  `yaml:"exec_path" json:"exec_path"`
	UserAgent                string  `yaml:"user_agent" json:"user_agent"`
	Locale                   string  `yaml:"locale" json:"locale"`
	ActionTimeoutSeconds     int     `yaml:"action_timeout_seconds" json:"action_timeout_seconds"`
	NavigationTimeoutSeconds int     `yaml:"navigation_timeout_seconds" json:"navigation_timeout_seconds"`
	HostRPS                  float64 `yaml:"host_rps" json:"host_rps"`
}

type LocateConfig struct {
	MaxAttempts       int  `yaml:"max_attempts" json:"max_attempts"`
	AllowPick         bool `yaml:"allow_pick" json:"allow_pick"`
	CacheFailureLimit int  `yaml:"cache_failure_limit" json:"cache_failure_limit"`
}

type PipelineConfig struct {
	MaxPages        int    `yaml:"max_pages" json:"max_pages"`
	IntervalMinutes int    `yaml:"interval_minutes" json:"interval_minutes"`
	DocumentMode    string `yaml:"document_mode" json:"document_mode"`
}

type CandidateConfig struct {
	Needs       string `yaml:"needs" json:"needs"`
	ProfilePath string `yaml:"profile_path" json:"profile_path"`
}

type DocumentsConfig struct {
	OutputDir  string `yaml:"output_dir" json:"output_dir"`
	UserCVPath string `yaml:"user_cv_path" json:"user_cv_path"`
}

type VerificationConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	IMAPHost       string `yaml:"imap_host" json:"imap_host"`
	IMAPPort       int    `yaml:"imap_port" json:"imap_port"`
	Username       string `yaml:"username" json:"username"`
	Mailbox        string `yaml:"mailbox" json:"mailbox"`
	KeyringAccount string `yaml:"keyring_account" json:"keyring_account"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

type FiltersConfig struct {
	// RemoteOK unset keeps remote postings.
	RemoteOK       *bool    `yaml:"remote_ok,omitempty" json:"remote_ok,omitempty"`
	LocationsAllow []string `yaml:"locations_allow" json:"locations_allow"`
	LocationsBlock []string `yaml:"locations_block" json:"locations_block"`
}

func (f FiltersConfig) AllowRemote() bool { return f.RemoteOK == nil || *f.RemoteOK }

type Site struct {
	Name           string             `yaml:"name" json:"name"`
	Kind           string             `yaml:"kind" json:"kind"` // oracle | selectors
	URL            string             `yaml:"url" json:"url"`
	JobsURL        string             `yaml:"jobs_url" json:"jobs_url"`
	Email          string             `yaml:"email" json:"email"`
	KeyringAccount string             `yaml:"keyring_account" json:"keyring_account"`
	Selectors      map[string]string  `yaml:"selectors" json:"selectors"`
	Verification   VerificationConfig `yaml:"verification" json:"verification"`
	Disabled       bool               `yaml:"disabled" json:"disabled"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Log struct {
		Level       string `yaml:"level" json:"level"`
		Development bool   `yaml:"development" json:"development"`
	} `yaml:"log" json:"log"`

	Oracle    OracleConfig    `yaml:"oracle" json:"oracle"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Locate    LocateConfig    `yaml:"locate" json:"locate"`
	Pipeline  PipelineConfig  `yaml:"pipeline" json:"pipeline"`
	Candidate CandidateConfig `yaml:"candidate" json:"candidate"`
	Documents DocumentsConfig `yaml:"documents" json:"documents"`

	Filters FiltersConfig `yaml:"filters" json:"filters"`

	Scoring struct {
		MinScore     int       `yaml:"min_score" json:"min_score"`
		TitleRules   []Rule    `yaml:"title_rules" json:"title_rules"`
		KeywordRules []Rule    `yaml:"keyword_rules" json:"keyword_rules"`
		Penalties    []Penalty `yaml:"penalties" json:"penalties"`
	} `yaml:"scoring" json:"scoring"`

	Sites []Site `yaml:"sites" json:"sites"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}

// ApplyDefaults fills zero values. Retry numbers follow the 20s x 3 policy the
// providers' free tiers tolerate.
func ApplyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 38471
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	o := &cfg.Oracle
	if o.Provider == "" {
		o.Provider = "openai"
	}
	if o.Model == "" {
		o.Model = "gpt-4o-mini"
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelaySeconds == 0 {
		o.RetryDelaySeconds = 20
	}
	if o.RequestsPerMinute == 0 {
		o.RequestsPerMinute = 30
	}
	if o.MaxSnapshotBytes == 0 {
		o.MaxSnapshotBytes = 120_000
	}
	if o.TimeoutSeconds == 0 {
		o.TimeoutSeconds = 90
	}

	b := &cfg.Browser
	if b.Locale == "" {
		b.Locale = "en-US"
	}
	if b.ActionTimeoutSeconds == 0 {
		b.ActionTimeoutSeconds = 10
	}
	if b.NavigationTimeoutSeconds == 0 {
		b.NavigationTimeoutSeconds = 30
	}
	if b.HostRPS == 0 {
		b.HostRPS = 0.5
	}

	if cfg.Locate.MaxAttempts == 0 {
		cfg.Locate.MaxAttempts = 5
	}
	if cfg.Locate.CacheFailureLimit == 0 {
		cfg.Locate.CacheFailureLimit = 2
	}

	if cfg.Pipeline.MaxPages == 0 {
		cfg.Pipeline.MaxPages = 20
	}
	if cfg.Pipeline.DocumentMode == "" {
		cfg.Pipeline.DocumentMode = "llm-selection"
	}
	if cfg.Documents.OutputDir == "" {
		cfg.Documents.OutputDir = "documents"
	}

	for i := range cfg.Sites {
		s := &cfg.Sites[i]
		if s.Kind == "" {
			s.Kind = "oracle"
		}
		if s.Verification.Mailbox == "" {
			s.Verification.Mailbox = "INBOX"
		}
		if s.Verification.IMAPPort == 0 {
			s.Verification.IMAPPort = 993
		}
		if s.Verification.TimeoutSeconds == 0 {
			s.Verification.TimeoutSeconds = 120
		}
	}
}
