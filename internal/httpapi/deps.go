package httpapi

import (
	"context"
	"sync/atomic"

	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/events"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/pipeline"
	"github.com/Korbielowski/AutoApply/internal/store"
)

type JobStore interface {
	ListJobs(ctx context.Context, opts store.ListJobsOpts) ([]store.Job, error)
	DeleteJob(ctx context.Context, id int64) error
}

type Deps struct {
	Jobs JobStore
	Hub  *events.Hub

	// Atomic stores
	CfgVal       *atomic.Value // stores config.Config
	ScrapeStatus *atomic.Value // stores httpapi.ScrapeStatus

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Launch starts a pipeline run; BaseCtx bounds background runs.
	Launch  pipeline.Launch
	BaseCtx context.Context
	// Scrape is shared with the scheduler; built from the fields above
	// when nil.
	Scrape *ScrapeHandler

	SetSitePassword func(site config.Site, password string) error
	SetMailPassword func(site config.Site, password string) error

	Log logger.Logger
}
