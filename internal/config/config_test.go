package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Korbielowski/AutoApply/internal/config"
)

const sample = `
app:
  port: 9000
oracle:
  provider: anthropic
  model: claude-test
candidate:
  needs: "Go backend, remote, Poland"
sites:
  - name: boards
    url: https://boards.example.com
    email: me@example.com
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yml", sample)

	cfg, err := config.Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "anthropic", cfg.Oracle.Provider)
	assert.Equal(t, 3, cfg.Oracle.MaxRetries)
	assert.Equal(t, 20*time.Second, cfg.Oracle.RetryDelay())
	assert.Equal(t, 5, cfg.Locate.MaxAttempts)
	assert.Equal(t, "llm-selection", cfg.Pipeline.DocumentMode)
	require.Len(t, cfg.Sites, 1)
	assert.Equal(t, "oracle", cfg.Sites[0].Kind)
	assert.Equal(t, "INBOX", cfg.Sites[0].Verification.Mailbox)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"AUTOAPPLY_DATA_DIR": "/tmp/aa",
		"ANTHROPIC_API_KEY":  "sk-ant",
		"OPENAI_API_KEY":     "sk-oai",
	}
	getenv := func(k string) string { return env[k] }

	var cfg config.Config
	cfg.Oracle.Provider = "anthropic"
	config.ApplyEnv(&cfg, getenv)

	assert.Equal(t, "/tmp/aa", cfg.App.DataDir)
	assert.Equal(t, "sk-ant", cfg.Oracle.APIKey)
}

func TestSiteEnvKey(t *testing.T) {
	assert.Equal(t, "AUTOAPPLY_SITE_JUST_JOIN_IT_PASSWORD", config.SiteEnvKey("just-join.it"))
}

func TestNormalizeAndValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *config.Config) {},
		},
		{
			name:    "bad provider",
			mutate:  func(c *config.Config) { c.Oracle.Provider = "gemini" },
			wantErr: "oracle.provider",
		},
		{
			name:    "bad document mode",
			mutate:  func(c *config.Config) { c.Pipeline.DocumentMode = "pdf" },
			wantErr: "pipeline.document_mode",
		},
		{
			name: "user specified without path",
			mutate: func(c *config.Config) {
				c.Pipeline.DocumentMode = "user-specified"
			},
			wantErr: "documents.user_cv_path",
		},
		{
			name: "duplicate site",
			mutate: func(c *config.Config) {
				c.Sites = append(c.Sites, c.Sites[0])
			},
			wantErr: "duplicated",
		},
		{
			name: "relative site url",
			mutate: func(c *config.Config) {
				c.Sites[0].URL = "boards.example.com"
			},
			wantErr: "absolute URL",
		},
		{
			name: "selectors site without entries selector",
			mutate: func(c *config.Config) {
				c.Sites[0].Kind = "selectors"
			},
			wantErr: "selectors.entry-extraction",
		},
		{
			name: "positive penalty",
			mutate: func(c *config.Config) {
				c.Scoring.Penalties = []config.Penalty{{Reason: "seniority", Weight: 15, Any: []string{"staff"}}}
			},
			wantErr: "scoring.penalties[0].weight",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "config.yml", sample)
			cfg, err := config.Load(p)
			require.NoError(t, err)
			tc.mutate(&cfg)

			_, res := config.NormalizeAndValidate(cfg)
			if tc.wantErr == "" {
				assert.True(t, res.OK(), "errors: %v", res.Errors)
				return
			}
			require.False(t, res.OK())
			assert.Contains(t, res.Errors[0], tc.wantErr)
		})
	}
}

func TestNormalizeTrimsLists(t *testing.T) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Filters.LocationsAllow = []string{" Warsaw ", "warsaw", "", "Remote"}

	out, _ := config.NormalizeAndValidate(cfg)
	assert.Equal(t, []string{"Warsaw", "Remote"}, out.Filters.LocationsAllow)
}

func TestSaveAtomicKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yml", sample)
	cfg, err := config.Load(p)
	require.NoError(t, err)

	cfg.App.Port = 9100
	require.NoError(t, config.SaveAtomic(p, cfg))

	reloaded, err := config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9100, reloaded.App.Port)
	assert.FileExists(t, p+".bak")
	assert.NoFileExists(t, p+".tmp")
}

func TestSaveAtomicRejectsInvalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yml")
	var cfg config.Config
	err := config.SaveAtomic(p, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.port")
	assert.NoFileExists(t, p)
}

func TestEnsureUserConfigCopiesOnce(t *testing.T) {
	src := writeFile(t, t.TempDir(), "default.yml", sample)
	dataDir := filepath.Join(t.TempDir(), "data")

	p, err := config.EnsureUserConfig(dataDir, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "config.yml"), p)

	require.NoError(t, os.WriteFile(p, []byte("app:\n  port: 1\n"), 0o644))
	p2, err := config.EnsureUserConfig(dataDir, src)
	require.NoError(t, err)
	b, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Contains(t, string(b), "port: 1")
}

func TestWatchFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yml", sample)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- config.Watch(ctx, p, 20*time.Millisecond, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte(sample+"\n# edit\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not fire")
	}

	cancel()
	require.NoError(t, <-done)
}
