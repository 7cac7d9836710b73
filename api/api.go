// Package api exposes the tailoring engine over HTTP with JSON bodies.
// Routing uses net/http method patterns; caller identity arrives in
// X-Actor-ID / X-Actor-Role headers, verified upstream.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/actor"
	"github.com/stitchhq/stitch/engine"
	"github.com/stitchhq/stitch/id"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// API wires all HTTP handlers for the tailoring engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// New creates an API from a tailoring Engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	return a.withActor(mux)
}

// RegisterRoutes registers all routes into the given mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/applications", a.createApplication)
	mux.HandleFunc("GET /v1/applications", a.listApplications)
	mux.HandleFunc("GET /v1/applications/{appID}", a.getApplication)
	mux.HandleFunc("POST /v1/applications/{appID}/status", a.transitionStatus)
	mux.HandleFunc("POST /v1/applications/{appID}/staff-status", a.setStaffStatus)

	mux.HandleFunc("POST /v1/applications/{appID}/tailor", a.submitForTailoring)
	mux.HandleFunc("GET /v1/applications/{appID}/tailoring", a.getTailoringStatus)
	mux.HandleFunc("GET /v1/applications/{appID}/events", a.listEvents)
	mux.HandleFunc("GET /v1/tailored/{trID}", a.getTailoredResume)
	mux.HandleFunc("PATCH /v1/tailored/{trID}", a.patchTailoredResume)

	mux.HandleFunc("GET /v1/dlq", a.listDLQ)
	mux.HandleFunc("GET /v1/dlq/{entryID}", a.getDLQ)
	mux.HandleFunc("POST /v1/dlq/{entryID}/replay", a.replayDLQ)
	mux.HandleFunc("POST /v1/dlq/purge", a.purgeDLQ)

	mux.HandleFunc("GET /v1/stats", a.stats)
}

// withActor lifts the caller identity headers onto the request context.
// Requests without the headers proceed anonymously; handlers that need
// an actor reject them with 401/403.
func (a *API) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := r.Header.Get(headerActorID)
		rawRole := r.Header.Get(headerActorRole)
		if rawID == "" && rawRole == "" {
			next.ServeHTTP(w, r)
			return
		}
		act := actor.Actor{Role: actor.Role(rawRole)}
		if rawID != "" {
			userID, err := id.ParseUserID(rawID)
			if err != nil {
				a.badRequest(w, "invalid "+headerActorID)
				return
			}
			act.ID = userID
		}
		if act.Role == "" {
			act.Role = actor.RoleUser
		}
		next.ServeHTTP(w, r.WithContext(actor.With(r.Context(), act)))
	})
}

// ───────────────────────── helpers ─────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("api: encode response", slog.String("error", err.Error()))
	}
}

func (a *API) badRequest(w http.ResponseWriter, msg string) {
	a.respond(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (a *API) fail(w http.ResponseWriter, err error) {
	a.respond(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, stitch.ErrApplicationNotFound),
		errors.Is(err, stitch.ErrResumeNotFound),
		errors.Is(err, stitch.ErrTailoredResumeNotFound),
		errors.Is(err, stitch.ErrQueueItemNotFound),
		errors.Is(err, stitch.ErrDLQNotFound),
		errors.Is(err, stitch.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, stitch.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, stitch.ErrAlreadyQueued),
		errors.Is(err, stitch.ErrStatusConflict),
		errors.Is(err, stitch.ErrItemAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, stitch.ErrMissingResume),
		errors.Is(err, stitch.ErrMissingProof),
		errors.Is(err, stitch.ErrResumeNotParsed),
		errors.Is(err, stitch.ErrInvalidStatus),
		errors.Is(err, stitch.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
