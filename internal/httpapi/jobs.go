package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/domain/jobs"
)

type jobView struct {
	jobs.Job
	Price         int64              `json:"price"`
	Outstanding   int64              `json:"outstanding"`
	Profit        int64              `json:"profit"`
	PaymentStatus jobs.PaymentStatus `json:"payment_status"`
}

func viewJob(j jobs.Job) jobView {
	return jobView{
		Job:           j,
		Price:         j.Price(),
		Outstanding:   j.Outstanding(),
		Profit:        j.Profit(),
		PaymentStatus: j.PaymentStatus(),
	}
}

type expenseRequest struct {
	Name       string   `json:"name"`
	Cost       int64    `json:"cost"`
	Date       *date    `json:"date"`
	Category   string   `json:"category"`
	ReceiptURL string   `json:"receipt_url"`
	JobIDs     []string `json:"job_ids"`
}

func (e expenseRequest) input() jobs.ExpenseInput {
	return jobs.ExpenseInput{
		Name:       e.Name,
		Cost:       e.Cost,
		Date:       e.Date.ptr(),
		Category:   e.Category,
		ReceiptURL: e.ReceiptURL,
		JobIDs:     e.JobIDs,
	}
}

func expenseInputs(in []expenseRequest) []jobs.ExpenseInput {
	out := make([]jobs.ExpenseInput, 0, len(in))
	for _, e := range in {
		out = append(out, e.input())
	}
	return out
}

type createJobRequest struct {
	ClientID          string           `json:"client_id"`
	ClientName        string           `json:"client_name"`
	ClientPhone       string           `json:"client_phone"`
	Description       string           `json:"description"`
	Type              jobs.Type        `json:"job_type"`
	VendorName        string           `json:"vendor_name"`
	VendorCostPerUnit int64            `json:"vendor_cost_per_unit"`
	TotalUnits        int              `json:"total_units"`
	PricingPerUnit    int64            `json:"pricing_per_unit"`
	PricingInput      int64            `json:"pricing_input"`
	Status            jobs.Status      `json:"progress_status"`
	StartDate         *date            `json:"start_date"`
	EndDate           *date            `json:"end_date"`
	Notes             string           `json:"notes"`
	Expenses          []expenseRequest `json:"expenses"`
}

type progressRequest struct {
	Status      jobs.Status `json:"progress_status"`
	Notes       string      `json:"notes"`
	CompletedAt *date       `json:"completed_at"`
	Reason      string      `json:"reason"`
}

func (p progressRequest) input() jobs.ProgressInput {
	return jobs.ProgressInput{Status: p.Status, Notes: p.Notes, CompletedAt: p.CompletedAt.ptr(), Reason: p.Reason}
}

type timeframeRequest struct {
	StartDate *date  `json:"start_date"`
	EndDate   *date  `json:"end_date"`
	Reason    string `json:"reason"`
}

func (t timeframeRequest) input() jobs.TimeframeInput {
	return jobs.TimeframeInput{StartDate: t.StartDate.ptr(), EndDate: t.EndDate.ptr(), Reason: t.Reason}
}

// usagePatch is the material-usage form of PATCH /jobs/{id}.
type usagePatch struct {
	MaterialID string  `json:"material_id"`
	Meters     float64 `json:"additional_usage_meters"`
	Wastage    float64 `json:"wastage"`
}

func (a *api) registerJobRoutes(r *mux.Router) {
	r.HandleFunc("/jobs", a.listJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs", a.createJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/payment-statuses", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"data": jobs.PaymentStatuses()})
	}).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", a.getJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", a.patchJob).Methods(http.MethodPatch)
	r.HandleFunc("/jobs/{id}/progress", a.updateProgress).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/jobs/{id}/materials", a.jobMaterials).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/materials", a.addJobMaterial).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/expenses", a.jobExpenses).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/expenses", a.addJobExpenses).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/timeframe", a.jobTimeframeChanges).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/timeframe", a.updateTimeframe).Methods(http.MethodPut)
	r.HandleFunc("/jobs/{id}/payments", a.recordPayment).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/notes", a.jobNotes).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/readings", a.jobReadings).Methods(http.MethodGet)
}

func (a *api) listJobs(w http.ResponseWriter, r *http.Request) {
	p, err := a.paging.parse(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	filter := jobs.Filter{
		ClientID: q.Get("client_id"),
		Status:   jobs.Status(q.Get("status")),
		Type:     jobs.Type(q.Get("job_type")),
	}
	results, err := a.services.Jobs.List(r.Context(), filter, p.offset(), p.PerPage)
	if err != nil {
		fail(w, a.logger, "list jobs", err)
		return
	}
	views := make([]jobView, 0, len(results))
	for _, j := range results {
		views = append(views, viewJob(j))
	}
	respondPage(w, p, views, len(views))
}

func (a *api) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := a.services.Jobs.Create(r.Context(), jobs.CreateInput{
		ClientID:          req.ClientID,
		ClientName:        req.ClientName,
		ClientPhone:       req.ClientPhone,
		Description:       req.Description,
		Type:              req.Type,
		VendorName:        req.VendorName,
		VendorCostPerUnit: req.VendorCostPerUnit,
		TotalUnits:        req.TotalUnits,
		PricingPerUnit:    req.PricingPerUnit,
		PricingInput:      req.PricingInput,
		Status:            req.Status,
		StartDate:         req.StartDate.ptr(),
		EndDate:           req.EndDate.ptr(),
		Notes:             req.Notes,
		Expenses:          expenseInputs(req.Expenses),
	})
	if err != nil {
		fail(w, a.logger, "create job", err)
		return
	}
	respondJSON(w, http.StatusCreated, viewJob(job))
}

func (a *api) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.services.Jobs.Get(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "get job", err)
		return
	}
	respondJSON(w, http.StatusOK, viewJob(job))
}

// patchJob routes a generic update to the operation its keys describe.
func (a *api) patchJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read body")
		return
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	decode := func(dst any) bool {
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(dst); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
			return false
		}
		return true
	}

	ctx, id := r.Context(), pathID(r)
	var job jobs.Job
	switch kind := jobs.ClassifyUpdate(keys); kind {
	case jobs.UpdateProgress:
		var req progressRequest
		if !decode(&req) {
			return
		}
		job, err = a.services.Jobs.UpdateProgress(ctx, id, req.input())
	case jobs.UpdateMaterialUsage:
		var req usagePatch
		if !decode(&req) {
			return
		}
		job, _, err = a.services.Jobs.AddMaterialUsage(ctx, id, jobs.MaterialUsageInput{
			MaterialID: req.MaterialID,
			Quantity:   req.Meters,
			Wastage:    req.Wastage,
			UserID:     callerID(r),
		})
	case jobs.UpdateExpenses:
		var req struct {
			Expenses []expenseRequest `json:"expenses"`
		}
		if !decode(&req) {
			return
		}
		job, err = a.services.Jobs.AddExpenses(ctx, id, expenseInputs(req.Expenses))
	case jobs.UpdateTimeframe:
		var req timeframeRequest
		if !decode(&req) {
			return
		}
		job, err = a.services.Jobs.UpdateTimeframe(ctx, id, req.input())
	default:
		respondError(w, http.StatusBadRequest,
			"unrecognised update: expected progress_status, material_id with additional_usage_meters, expenses, or start_date/end_date")
		return
	}
	if err != nil {
		fail(w, a.logger, "patch job", err)
		return
	}
	respondJSON(w, http.StatusOK, viewJob(job))
}

func (a *api) updateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := a.services.Jobs.UpdateProgress(r.Context(), pathID(r), req.input())
	if err != nil {
		fail(w, a.logger, "update job progress", err)
		return
	}
	respondJSON(w, http.StatusOK, viewJob(job))
}

func (a *api) addJobMaterial(w http.ResponseWriter, r *http.Request) {
	var input jobs.MaterialUsageInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.UserID == "" {
		input.UserID = callerID(r)
	}
	job, usage, err := a.services.Jobs.AddMaterialUsage(r.Context(), pathID(r), input)
	if err != nil {
		fail(w, a.logger, "add job material", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"job": viewJob(job), "usage": usage})
}

func (a *api) jobMaterials(w http.ResponseWriter, r *http.Request) {
	results, err := a.services.Jobs.MaterialUsages(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "list job materials", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}

func (a *api) addJobExpenses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expenses []expenseRequest `json:"expenses"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := a.services.Jobs.AddExpenses(r.Context(), pathID(r), expenseInputs(req.Expenses))
	if err != nil {
		fail(w, a.logger, "add job expenses", err)
		return
	}
	respondJSON(w, http.StatusCreated, viewJob(job))
}

func (a *api) jobExpenses(w http.ResponseWriter, r *http.Request) {
	results, err := a.services.Jobs.Expenses(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "list job expenses", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}

func (a *api) updateTimeframe(w http.ResponseWriter, r *http.Request) {
	var req timeframeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := a.services.Jobs.UpdateTimeframe(r.Context(), pathID(r), req.input())
	if err != nil {
		fail(w, a.logger, "update job timeframe", err)
		return
	}
	respondJSON(w, http.StatusOK, viewJob(job))
}

func (a *api) jobTimeframeChanges(w http.ResponseWriter, r *http.Request) {
	results, err := a.services.Jobs.TimeframeChanges(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "list job timeframe changes", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}

func (a *api) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := a.services.Jobs.RecordPayment(r.Context(), pathID(r), req.Amount)
	if err != nil {
		fail(w, a.logger, "record job payment", err)
		return
	}
	respondJSON(w, http.StatusOK, viewJob(job))
}

func (a *api) jobNotes(w http.ResponseWriter, r *http.Request) {
	results, err := a.services.Jobs.Notes(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "list job notes", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}

func (a *api) jobReadings(w http.ResponseWriter, r *http.Request) {
	if _, err := a.services.Jobs.Get(r.Context(), pathID(r)); err != nil {
		fail(w, a.logger, "job readings", err)
		return
	}
	results, err := a.services.Machines.ReadingsForJob(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "job readings", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}
