package pipeline

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/Korbielowski/AutoApply/internal/browser"
	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/documents"
	"github.com/Korbielowski/AutoApply/internal/extract"
	"github.com/Korbielowski/AutoApply/internal/locate"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/mailcode"
	"github.com/Korbielowski/AutoApply/internal/navigate"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/secrets"
	"github.com/Korbielowski/AutoApply/internal/store"
)

// Launch prepares one run over cfg.Sites. release frees what the run
// opened and is called once the stream is drained.
type Launch func(ctx context.Context, cfg config.Config) (seq iter.Seq[Event], release func(), err error)

// Deps are the long-lived collaborators a Driver is built around.
type Deps struct {
	Browser browser.Browser
	Oracle  oracle.Client
	Store   *store.DB
	Log     logger.Logger
}

// New assembles a Driver from cfg: oracle navigators, the posting
// extractor, the evaluator and the document writer.
func New(cfg config.Config, deps Deps) (*Driver, error) {
	log := logger.OrNop(deps.Log)
	mode, err := documents.ParseMode(cfg.Pipeline.DocumentMode)
	if err != nil {
		return nil, err
	}
	profile, err := readProfile(cfg.Candidate.ProfilePath)
	if err != nil {
		return nil, err
	}

	actionTimeout := time.Duration(cfg.Browser.ActionTimeoutSeconds) * time.Second
	opts := navigate.Options{
		MaxPages:    cfg.Pipeline.MaxPages,
		Policy:      navigate.ActionPolicy(actionTimeout / 10),
		MaxSnapshot: cfg.Oracle.MaxSnapshotBytes,
	}
	finder := locate.NewFinder(deps.Oracle, cfg.Oracle.MaxSnapshotBytes, cfg.Locate.MaxAttempts, cfg.Locate.AllowPick, log)

	d := &Driver{
		Browser:    deps.Browser,
		Navigators: navigate.DefaultRegistry(finder, deps.Oracle, opts, log),
		Extractor: &extract.OracleExtractor{
			Browser:     deps.Browser,
			Oracle:      deps.Oracle,
			Limiter:     browser.NewHostLimiter(cfg.Browser.HostRPS, 1),
			MaxSnapshot: cfg.Oracle.MaxSnapshotBytes,
			Log:         log.With(logger.Component("extract")),
		},
		Evaluator: &extract.OracleEvaluator{Oracle: deps.Oracle, Needs: cfg.Candidate.Needs},
		Generator: &documents.Writer{
			Oracle:     deps.Oracle,
			OutputDir:  cfg.Documents.OutputDir,
			Profile:    profile,
			UserCVPath: cfg.Documents.UserCVPath,
			Log:        log.With(logger.Component("documents")),
		},
		Config:      cfg,
		Mode:        mode,
		Credentials: secrets.SitePassword,
		Codes:       MailCodes(log),
		Log:         log,
	}
	if deps.Store != nil {
		d.Persister = deps.Store
		d.Profiles = deps.Store
	}
	return d, nil
}

func readProfile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read candidate profile: %w", err)
	}
	return string(b), nil
}

// MailCodes builds an IMAP code source for sites with verification enabled.
func MailCodes(log logger.Logger) func(site config.Site) navigate.CodeSource {
	log = logger.OrNop(log).With(logger.Component("mailcode"))
	return func(site config.Site) navigate.CodeSource {
		v := site.Verification
		if !v.Enabled {
			return nil
		}
		pw, err := secrets.MailPassword(site)
		if err != nil {
			log.Warn("verification enabled but no mailbox password", logger.String("site", site.Name), logger.Error(err))
			return nil
		}
		user := v.Username
		if user == "" {
			user = site.Email
		}
		return &mailcode.Fetcher{
			Source: &mailcode.IMAPSource{
				Addr:     mailcode.IMAPAddr(v.IMAPHost, v.IMAPPort),
				Username: user,
				Password: pw,
				Mailbox:  v.Mailbox,
				Log:      log,
			},
			Timeout: time.Duration(v.TimeoutSeconds) * time.Second,
			Log:     log,
		}
	}
}
