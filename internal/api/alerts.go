package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/reservly/pulsed/internal/alert"
	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/store"
)

type alertsAPI struct {
	registry *alert.Registry
	store    *store.Store
}

// list returns live alerts by default; ?history=true reads the durable
// store instead, including long-resolved alerts.
func (a *alertsAPI) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	severity := model.AlertSeverity(q.Get("severity"))
	domain := model.MetricDomain(q.Get("type"))
	status := model.AlertStatus(q.Get("status"))

	if q.Get("history") == "true" {
		limit := 100
		if s := q.Get("limit"); s != "" {
			if v, err := strconv.Atoi(s); err == nil && v > 0 {
				limit = v
			}
		}
		alerts, err := a.store.ListAlerts(store.AlertQuery{
			Severity: severity,
			Type:     domain,
			Status:   status,
			Limit:    limit,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, alerts)
		return
	}

	writeJSON(w, http.StatusOK, a.registry.List(alert.ListFilter{
		Severity: severity,
		Type:     domain,
		Status:   status,
	}))
}

func (a *alertsAPI) get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	al, err := a.registry.Get(id)
	if err == nil {
		writeJSON(w, http.StatusOK, al)
		return
	}
	// Evicted from memory after the resolved grace period; try the store.
	if al, serr := a.store.GetAlert(id); serr == nil {
		writeJSON(w, http.StatusOK, al)
		return
	}
	writeError(w, http.StatusNotFound, "alert not found")
}

func (a *alertsAPI) acknowledge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Assignee string `json:"assignee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Assignee == "" {
		writeError(w, http.StatusBadRequest, "assignee required")
		return
	}
	al, err := a.registry.Acknowledge(mux.Vars(r)["id"], body.Assignee)
	if err != nil {
		a.transitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

func (a *alertsAPI) resolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Resolution string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	al, err := a.registry.Resolve(mux.Vars(r)["id"], body.Resolution)
	if err != nil {
		a.transitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

// transitionError maps registry errors: unknown id is 404, an operation that
// does not apply to the alert's current status is 409 carrying that status.
func (a *alertsAPI) transitionError(w http.ResponseWriter, err error) {
	var te *alert.TransitionError
	switch {
	case errors.As(err, &te):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  err.Error(),
			"status": string(te.Current),
		})
	case errors.Is(err, alert.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
