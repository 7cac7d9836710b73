package api

import (
	"net/http"
)

// StatsResponse is a point-in-time snapshot of pipeline depth.
type StatsResponse struct {
	// QueuedItems counts non-terminal queue items, leased or not.
	QueuedItems int64 `json:"queued_items"`
	// DeadLetters counts entries in the dead letter set.
	DeadLetters int64 `json:"dead_letters"`
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	queued, err := a.eng.Store().CountItems(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	dead, err := a.eng.DLQService().DLQStore().CountDLQ(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, StatsResponse{
		QueuedItems: queued,
		DeadLetters: dead,
	})
}
