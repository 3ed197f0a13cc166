package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/reservly/pulsed/internal/model"
	"github.com/reservly/pulsed/internal/sla"
	"github.com/reservly/pulsed/internal/store"
)

type slaAPI struct {
	agg    *sla.Aggregator
	store  *store.Store
	writer *store.RetryWriter
}

func (a *slaAPI) list(w http.ResponseWriter, r *http.Request) {
	period := model.SLAPeriod(r.URL.Query().Get("period"))
	limit := 30
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	reports, err := a.store.ListSLAReports(period, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]model.SLAReport, len(reports))
	for i, rep := range reports {
		out[i] = rep.Presented()
	}
	writeJSON(w, http.StatusOK, out)
}

// generate builds a report on demand for the period containing the given
// date (default today) and persists it.
func (a *slaAPI) generate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PeriodType model.SLAPeriod `json:"period_type"`
		Date       string          `json:"date"` // YYYY-MM-DD, optional
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch body.PeriodType {
	case model.PeriodDay, model.PeriodWeek, model.PeriodMonth:
	default:
		writeError(w, http.StatusBadRequest, "period_type must be day, week or month")
		return
	}
	at := time.Now().UTC()
	if body.Date != "" {
		t, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		at = t
	}

	report, err := a.agg.BuildReport(at, body.PeriodType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writer.SaveSLAReport(report)
	writeJSON(w, http.StatusOK, report.Presented())
}

// exportCSV streams stored reports as CSV for spreadsheet import.
func (a *slaAPI) exportCSV(w http.ResponseWriter, r *http.Request) {
	period := model.SLAPeriod(r.URL.Query().Get("period"))
	reports, err := a.store.ListSLAReports(period, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sla_reports.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"period_key", "period_type", "period_start", "period_end",
		"target_availability", "availability", "uptime_seconds",
		"downtime_seconds", "avg_response_time_ms", "success_rate",
		"insufficient_data",
	})
	for _, rep := range reports {
		p := rep.Presented()
		_ = cw.Write([]string{
			p.PeriodKey,
			string(p.PeriodType),
			p.PeriodStart.Format(time.RFC3339),
			p.PeriodEnd.Format(time.RFC3339),
			fmt.Sprintf("%.2f", p.TargetAvailability),
			fmt.Sprintf("%.2f", p.Availability),
			strconv.FormatInt(p.UptimeSeconds, 10),
			strconv.FormatInt(p.DowntimeSeconds, 10),
			fmt.Sprintf("%.2f", p.AvgResponseTimeMs),
			fmt.Sprintf("%.2f", p.SuccessRate),
			strconv.FormatBool(p.InsufficientData),
		})
	}
	cw.Flush()
}
