package api

import (
	"net/http"
	"time"

	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/id"
)

// defaultDLQRetention bounds POST /v1/dlq/purge when no cutoff is given.
const defaultDLQRetention = 30 * 24 * time.Hour

func (a *API) listDLQ(w http.ResponseWriter, r *http.Request) {
	opts := dlq.ListOpts{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if raw := r.URL.Query().Get("job"); raw != "" {
		jobID, err := id.ParseApplicationID(raw)
		if err != nil {
			a.badRequest(w, "invalid job filter")
			return
		}
		opts.JobID = jobID
	}

	entries, err := a.eng.DLQService().DLQStore().ListDLQ(r.Context(), opts)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, entries)
}

func (a *API) getDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(r.PathValue("entryID"))
	if err != nil {
		a.badRequest(w, "invalid DLQ entry ID")
		return
	}
	entry, err := a.eng.DLQService().DLQStore().GetDLQ(r.Context(), entryID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, entry)
}

func (a *API) replayDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(r.PathValue("entryID"))
	if err != nil {
		a.badRequest(w, "invalid DLQ entry ID")
		return
	}
	item, err := a.eng.ReplayDeadLetter(r.Context(), entryID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, item)
}

// PurgeDLQResponse reports how many entries a purge removed.
type PurgeDLQResponse struct {
	Purged int64 `json:"purged"`
}

func (a *API) purgeDLQ(w http.ResponseWriter, r *http.Request) {
	before := time.Now().UTC().Add(-defaultDLQRetention)
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.badRequest(w, "invalid before timestamp, want RFC 3339")
			return
		}
		before = parsed
	}

	count, err := a.eng.DLQService().DLQStore().PurgeDLQ(r.Context(), before)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, PurgeDLQResponse{Purged: count})
}
