package api

import (
	"net/http"

	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/resume"
)

func (a *API) submitForTailoring(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(r.PathValue("appID"))
	if err != nil {
		a.badRequest(w, "invalid application ID")
		return
	}
	item, err := a.eng.SubmitForTailoring(r.Context(), appID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusAccepted, item)
}

func (a *API) getTailoringStatus(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(r.PathValue("appID"))
	if err != nil {
		a.badRequest(w, "invalid application ID")
		return
	}
	status, err := a.eng.GetTailoringStatus(r.Context(), appID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, status)
}

func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(r.PathValue("appID"))
	if err != nil {
		a.badRequest(w, "invalid application ID")
		return
	}
	events, err := a.eng.Events(r.Context(), appID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, events)
}

func (a *API) getTailoredResume(w http.ResponseWriter, r *http.Request) {
	trID, err := id.ParseTailoredID(r.PathValue("trID"))
	if err != nil {
		a.badRequest(w, "invalid tailored resume ID")
		return
	}
	tr, err := a.eng.GetTailoredResume(r.Context(), trID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, tr)
}

func (a *API) patchTailoredResume(w http.ResponseWriter, r *http.Request) {
	trID, err := id.ParseTailoredID(r.PathValue("trID"))
	if err != nil {
		a.badRequest(w, "invalid tailored resume ID")
		return
	}
	var patch resume.ContentPatch
	if err := decode(r, &patch); err != nil {
		a.badRequest(w, "invalid body: "+err.Error())
		return
	}
	tr, err := a.eng.Store().PatchTailoredResume(r.Context(), trID, patch)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, tr)
}
