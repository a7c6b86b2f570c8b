package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/users"
)

func (a *api) registerReportRoutes(r *mux.Router) {
	r.HandleFunc("/reports/material-usage", guard(users.PermViewReports, a.materialUsageReport)).Methods(http.MethodGet)
	r.HandleFunc("/reports/jobs", guard(users.PermViewReports, a.jobsReport)).Methods(http.MethodGet)
	r.HandleFunc("/reports/jobs/{id}/usage", guard(users.PermViewReports, a.jobUsageReport)).Methods(http.MethodGet)
	r.HandleFunc("/reports/low-stock", guard(users.PermViewReports, a.lowStockReport)).Methods(http.MethodGet)
	r.HandleFunc("/reports/summary", guard(users.PermViewReports, a.summaryReport)).Methods(http.MethodGet)
}

func (a *api) materialUsageReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := a.services.Reports.MaterialUsage(r.Context(), from, to)
	if err != nil {
		fail(w, a.logger, "material usage report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

func (a *api) jobsReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := a.services.Reports.Jobs(r.Context(), jobs.Filter{
		ClientID: q.Get("client_id"),
		Status:   jobs.Status(q.Get("status")),
		Type:     jobs.Type(q.Get("job_type")),
	})
	if err != nil {
		fail(w, a.logger, "jobs report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

func (a *api) jobUsageReport(w http.ResponseWriter, r *http.Request) {
	rows, err := a.services.Reports.JobUsage(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "job usage report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

func (a *api) lowStockReport(w http.ResponseWriter, r *http.Request) {
	rows, err := a.services.Reports.LowStock(r.Context())
	if err != nil {
		fail(w, a.logger, "low stock report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

func (a *api) summaryReport(w http.ResponseWriter, r *http.Request) {
	summary, err := a.services.Reports.Summary(r.Context())
	if err != nil {
		fail(w, a.logger, "summary report", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
