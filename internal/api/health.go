package api

import (
	"net/http"

	"github.com/reservly/pulsed/internal/alert"
	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/source"
)

type healthAPI struct {
	sources  *source.Registry
	registry *alert.Registry
}

// health reports per-domain collection state plus the live alert count. The
// service is degraded when any domain is failing, not down: remaining
// domains keep collecting.
func (a *healthAPI) health(w http.ResponseWriter, r *http.Request) {
	domains := a.sources.Health()
	status := "ok"
	for _, d := range domains {
		if !d.Healthy {
			status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        status,
		"domains":       domains,
		"active_alerts": len(a.registry.List(alert.ListFilter{Status: model.StatusActive})),
	})
}
