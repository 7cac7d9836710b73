package api

import (
	"net/http"
	"strconv"

	"github.com/stitchhq/stitch/actor"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/id"
)

// CreateApplicationRequest is the body for POST /v1/applications. When
// UserID is empty the authenticated actor becomes the owner.
type CreateApplicationRequest struct {
	UserID      string `json:"user_id,omitempty"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url,omitempty"`
	Location    string `json:"location,omitempty"`
	ResumeID    string `json:"resume_id,omitempty"`
}

func (a *API) createApplication(w http.ResponseWriter, r *http.Request) {
	var req CreateApplicationRequest
	if err := decode(r, &req); err != nil {
		a.badRequest(w, "invalid body: "+err.Error())
		return
	}
	if req.Title == "" || req.Company == "" {
		a.badRequest(w, "title and company are required")
		return
	}

	userID := id.Nil
	if req.UserID != "" {
		parsed, err := id.ParseUserID(req.UserID)
		if err != nil {
			a.badRequest(w, "invalid user_id")
			return
		}
		userID = parsed
	} else if act, ok := actor.From(r.Context()); ok {
		userID = act.ID
	}
	if userID.IsNil() {
		a.badRequest(w, "user_id or an authenticated actor is required")
		return
	}

	app := application.New(userID, req.Title, req.Company, req.Description)
	app.SourceURL = req.SourceURL
	app.Location = req.Location
	if req.ResumeID != "" {
		resumeID, err := id.ParseResumeID(req.ResumeID)
		if err != nil {
			a.badRequest(w, "invalid resume_id")
			return
		}
		app.ResumeID = resumeID
	}

	if err := a.eng.Store().CreateApplication(r.Context(), app); err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, app)
}

func (a *API) getApplication(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(r.PathValue("appID"))
	if err != nil {
		a.badRequest(w, "invalid application ID")
		return
	}
	app, err := a.eng.GetApplication(r.Context(), appID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, app)
}

func (a *API) listApplications(w http.ResponseWriter, r *http.Request) {
	opts := application.ListOpts{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
		Status: application.Status(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("user"); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			a.badRequest(w, "invalid user filter")
			return
		}
		opts.UserID = userID
	}

	apps, err := a.eng.Store().ListApplications(r.Context(), opts)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, apps)
}

// TransitionStatusRequest is the body for POST .../status. Proof is
// required when To is "applied".
type TransitionStatusRequest struct {
	To    string `json:"to"`
	Proof string `json:"proof,omitempty"`
}

func (a *API) transitionStatus(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(r.PathValue("appID"))
	if err != nil {
		a.badRequest(w, "invalid application ID")
		return
	}
	var req TransitionStatusRequest
	if err := decode(r, &req); err != nil {
		a.badRequest(w, "invalid body: "+err.Error())
		return
	}

	app, err := a.eng.TransitionStatus(r.Context(), appID, application.Status(req.To), application.TransitionInput{
		Proof: req.Proof,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, app)
}

// SetStaffStatusRequest is the body for POST .../staff-status. Status
// is one of the staff projections: Applying, Applied, Trashed.
type SetStaffStatusRequest struct {
	Status string `json:"status"`
	Proof  string `json:"proof,omitempty"`
}

func (a *API) setStaffStatus(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(r.PathValue("appID"))
	if err != nil {
		a.badRequest(w, "invalid application ID")
		return
	}
	var req SetStaffStatusRequest
	if err := decode(r, &req); err != nil {
		a.badRequest(w, "invalid body: "+err.Error())
		return
	}

	app, err := a.eng.SetStaffStatus(r.Context(), appID, application.StaffStatus(req.Status), req.Proof)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, app)
}

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
