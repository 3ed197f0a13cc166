package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reservly/pulsed/internal/collector"
	"github.com/reservly/pulsed/internal/store"
)

type snapshotsAPI struct {
	samples *collector.SampleStore
	store   *store.Store
}

// latest returns the most recent in-memory snapshot.
func (a *snapshotsAPI) latest(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.samples.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot collected yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// history returns recent snapshots from the in-memory window; older ranges
// fall through to durable storage.
func (a *snapshotsAPI) history(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from := parseUnix(r.URL.Query().Get("from"), now.Add(-time.Hour).Unix())
	to := parseUnix(r.URL.Query().Get("to"), now.Unix())

	fromT, toT := time.Unix(from, 0), time.Unix(to, 0)
	snaps := a.samples.Range(fromT, toT)
	if len(snaps) == 0 {
		var err error
		snaps, err = a.store.QuerySnapshots(fromT, toT)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// query returns downsampled time series for one or more flattened metric
// names, e.g. name=payments.successRate,system.responseTime.
func (a *snapshotsAPI) query(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name parameter required")
		return
	}

	now := time.Now().Unix()
	from := parseUnix(r.URL.Query().Get("from"), now-3600)
	to := parseUnix(r.URL.Query().Get("to"), now)
	step := 0
	if s := r.URL.Query().Get("step"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			step = v
		}
	}

	out := make(map[string][]store.SeriesPoint)
	for _, n := range strings.Split(name, ",") {
		points, err := a.store.QuerySeries(strings.TrimSpace(n), from, to, step)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out[strings.TrimSpace(n)] = points
	}
	writeJSON(w, http.StatusOK, out)
}

func parseUnix(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
