package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/domain/machines"
)

func (a *api) registerMachineRoutes(r *mux.Router) {
	r.HandleFunc("/machines", a.listMachines).Methods(http.MethodGet)
	r.HandleFunc("/machines", a.createMachine).Methods(http.MethodPost)
	r.HandleFunc("/machines/{id}", a.getMachine).Methods(http.MethodGet)
	r.HandleFunc("/machines/{id}", a.updateMachine).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/machines/{id}/readings", a.machineReadings).Methods(http.MethodGet)

	r.HandleFunc("/machine-readings", a.listReadings).Methods(http.MethodGet)
	r.HandleFunc("/machine-readings", a.logReading).Methods(http.MethodPost)
	r.HandleFunc("/machine-readings/{id}", a.deleteReading).Methods(http.MethodDelete)
}

func (a *api) listMachines(w http.ResponseWriter, r *http.Request) {
	status := machines.Status(r.URL.Query().Get("status"))
	results, err := a.services.Machines.ListMachines(r.Context(), status)
	if err != nil {
		fail(w, a.logger, "list machines", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}

func (a *api) createMachine(w http.ResponseWriter, r *http.Request) {
	var input machines.MachineInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.services.Machines.CreateMachine(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "create machine", err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (a *api) getMachine(w http.ResponseWriter, r *http.Request) {
	m, err := a.services.Machines.GetMachine(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "get machine", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (a *api) updateMachine(w http.ResponseWriter, r *http.Request) {
	var input machines.MachineUpdate
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.services.Machines.UpdateMachine(r.Context(), pathID(r), input)
	if err != nil {
		fail(w, a.logger, "update machine", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (a *api) machineReadings(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.services.Machines.ReadingsForMachine(r.Context(), pathID(r), from, to)
	if err != nil {
		fail(w, a.logger, "machine readings", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *api) listReadings(w http.ResponseWriter, r *http.Request) {
	p, err := a.paging.parse(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.services.Machines.ListReadings(r.Context(), p.Number, p.PerPage)
	if err != nil {
		fail(w, a.logger, "list machine readings", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *api) logReading(w http.ResponseWriter, r *http.Request) {
	var input machines.ReadingInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.OperatorID == "" {
		input.OperatorID = callerID(r)
	}
	reading, err := a.services.Machines.LogReading(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "log machine reading", err)
		return
	}
	respondJSON(w, http.StatusCreated, reading)
}

func (a *api) deleteReading(w http.ResponseWriter, r *http.Request) {
	if err := a.services.Machines.DeleteReading(r.Context(), pathID(r)); err != nil {
		fail(w, a.logger, "delete machine reading", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
