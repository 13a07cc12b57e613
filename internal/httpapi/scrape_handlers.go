package httpapi

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/events"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/pipeline"
	"github.com/Korbielowski/AutoApply/internal/runlock"
)

type ScrapeStatus struct {
	RunID      string `json:"run_id"`
	LastRunAt  string `json:"last_run_at"`
	LastOkAt   string `json:"last_ok_at"`
	LastError  string `json:"last_error"`
	LastAdded  int    `json:"last_added"`
	LastEvents int    `json:"last_events"`
	Running    bool   `json:"running"`
}

type ScrapeHandler struct {
	mu           sync.Mutex
	CfgVal       *atomic.Value // config.Config
	ScrapeStatus *atomic.Value // httpapi.ScrapeStatus
	Hub          *events.Hub
	Launch       pipeline.Launch
	BaseCtx      context.Context
	Log          logger.Logger
}

func NewScrapeHandler(d Deps) *ScrapeHandler {
	return &ScrapeHandler{
		CfgVal:       d.CfgVal,
		ScrapeStatus: d.ScrapeStatus,
		Hub:          d.Hub,
		Launch:       d.Launch,
		BaseCtx:      d.BaseCtx,
		Log:          logger.OrNop(d.Log).With(logger.Component("httpapi")),
	}
}

func (h *ScrapeHandler) status() ScrapeStatus {
	st, _ := h.ScrapeStatus.Load().(ScrapeStatus)
	return st
}

func (h *ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.status())
}

// Run starts a pipeline in the background; progress goes to /events.
func (h *ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	seq, rn, err := h.begin(ctx, RequestIDFrom(r.Context()))
	if err != nil {
		h.writeBeginError(w, r, err)
		return
	}

	go func() {
		for ev := range seq {
			rn.observe(ev)
		}
		rn.finish(ctx.Err())
	}()
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// Stream runs a pipeline inside the request and writes one SSE "job"
// event per pipeline event. No-data events carry "null". A final "done"
// event closes the stream.
func (h *ScrapeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "Streaming unsupported")
		return
	}
	ctx := r.Context()
	seq, rn, err := h.begin(ctx, RequestIDFrom(ctx))
	if err != nil {
		h.writeBeginError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range seq {
		rn.observe(ev)
		if _, err := fmt.Fprintf(w, "event: job\ndata: %s\n\n", ev.Payload()); err != nil {
			break
		}
		flusher.Flush()
	}
	rn.finish(ctx.Err())
	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

// RunOnce runs a pipeline to completion outside of any request.
func (h *ScrapeHandler) RunOnce(ctx context.Context) error {
	seq, rn, err := h.begin(ctx, "")
	if err != nil {
		return err
	}
	for ev := range seq {
		rn.observe(ev)
	}
	rn.finish(ctx.Err())
	return ctx.Err()
}

func (h *ScrapeHandler) writeBeginError(w http.ResponseWriter, r *http.Request, err error) {
	WriteErr(w, r, err, "launch_failed")
}

// run tracks one pipeline run from lock to release.
type run struct {
	h       *ScrapeHandler
	reqID   string
	lock    *runlock.Lock
	release func()
	runID   string
	events  int
	added   int
}

func (h *ScrapeHandler) begin(ctx context.Context, reqID string) (iter.Seq[pipeline.Event], *run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status().Running {
		return nil, nil, runlock.ErrAlreadyRunning
	}

	cfg, _ := h.CfgVal.Load().(config.Config)
	dir := cfg.App.DataDir
	if dir == "" {
		dir = "."
	}
	lock, err := runlock.Acquire(dir)
	if err != nil {
		return nil, nil, err
	}
	seq, release, err := h.Launch(ctx, cfg)
	if err != nil {
		_ = lock.Release()
		h.Log.Error("launch run", logger.Error(err))
		return nil, nil, err
	}
	if release == nil {
		release = func() {}
	}

	prev := h.status()
	h.ScrapeStatus.Store(ScrapeStatus{
		LastRunAt: time.Now().UTC().Format(time.RFC3339),
		LastOkAt:  prev.LastOkAt,
		Running:   true,
	})
	h.Hub.Publish(events.MakeEvent(reqID, events.TypeRunStarted, nil))
	return seq, &run{h: h, reqID: reqID, lock: lock, release: release}, nil
}

func (rn *run) observe(ev pipeline.Event) {
	rn.runID = ev.RunID
	rn.events++
	typ := events.TypeJob
	if ev.Kind == pipeline.KindNoData {
		typ = events.TypeNoData
	}
	if ev.Qualified {
		rn.added++
	}
	rn.h.Hub.Publish(events.MakeEvent(rn.reqID, typ, ev))
}

func (rn *run) finish(err error) {
	rn.release()
	if lerr := rn.lock.Release(); lerr != nil {
		rn.h.Log.Warn("release run lock", logger.Error(lerr))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	st := rn.h.status()
	st.RunID = rn.runID
	st.Running = false
	st.LastEvents = rn.events
	st.LastAdded = rn.added
	summary := map[string]any{"run_id": rn.runID, "events": rn.events, "added": rn.added}
	if err != nil {
		st.LastError = err.Error()
		summary["error"] = err.Error()
		rn.h.Hub.Publish(events.MakeEvent(rn.reqID, events.TypeRunFailed, summary))
	} else {
		st.LastError = ""
		st.LastOkAt = now
		rn.h.Hub.Publish(events.MakeEvent(rn.reqID, events.TypeRunFinished, summary))
	}
	rn.h.ScrapeStatus.Store(st)
}
