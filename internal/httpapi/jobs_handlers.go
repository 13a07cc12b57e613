package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Korbielowski/AutoApply/internal/events"
	"github.com/Korbielowski/AutoApply/internal/store"
)

type JobsHandler struct {
	Jobs JobStore
	Hub  *events.Hub
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	jobs, err := h.Jobs.ListJobs(r.Context(), store.ListJobsOpts{
		Sort:   q.Get("sort"),
		Window: q.Get("window"),
		Site:   q.Get("site"),
		Limit:  limit,
	})
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, jobs)
}

func (h JobsHandler) DeleteByPath(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/jobs/"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, r, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}

	if err := h.Jobs.DeleteJob(r.Context(), id); err != nil {
		WriteErr(w, r, err, "delete_failed")
		return
	}

	h.Hub.Publish(events.MakeEvent(RequestIDFrom(r.Context()), "job.deleted", map[string]any{"id": id}))
	writeJSON(w, map[string]any{"ok": true, "id": id})
}
