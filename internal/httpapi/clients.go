package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/suppliers"
)

func (a *api) registerClientRoutes(r *mux.Router) {
	r.HandleFunc("/clients", a.listClients).Methods(http.MethodGet)
	r.HandleFunc("/clients", a.createClient).Methods(http.MethodPost)
	r.HandleFunc("/clients/{id}", a.getClient).Methods(http.MethodGet)
	r.HandleFunc("/clients/{id}", a.updateClient).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/clients/{id}", a.deleteClient).Methods(http.MethodDelete)
	r.HandleFunc("/clients/{id}/outstanding", a.clientOutstanding).Methods(http.MethodGet)
}

func (a *api) listClients(w http.ResponseWriter, r *http.Request) {
	p, err := a.paging.parse(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := a.services.Clients.List(r.Context(), p.offset(), p.PerPage)
	if err != nil {
		fail(w, a.logger, "list clients", err)
		return
	}
	respondPage(w, p, results, len(results))
}

func (a *api) createClient(w http.ResponseWriter, r *http.Request) {
	var input clients.CreateInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := a.services.Clients.Create(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "create client", err)
		return
	}
	respondJSON(w, http.StatusCreated, client)
}

func (a *api) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := a.services.Clients.Get(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "get client", err)
		return
	}
	respondJSON(w, http.StatusOK, client)
}

func (a *api) updateClient(w http.ResponseWriter, r *http.Request) {
	var input clients.UpdateInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := a.services.Clients.Update(r.Context(), pathID(r), input)
	if err != nil {
		fail(w, a.logger, "update client", err)
		return
	}
	respondJSON(w, http.StatusOK, client)
}

func (a *api) deleteClient(w http.ResponseWriter, r *http.Request) {
	if err := a.services.Clients.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, a.logger, "delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) clientOutstanding(w http.ResponseWriter, r *http.Request) {
	report, err := a.services.Reports.OutstandingPayments(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "client outstanding payments", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (a *api) registerSupplierRoutes(r *mux.Router) {
	r.HandleFunc("/suppliers", a.listSuppliers).Methods(http.MethodGet)
	r.HandleFunc("/suppliers", a.createSupplier).Methods(http.MethodPost)
	r.HandleFunc("/suppliers/{id}", a.getSupplier).Methods(http.MethodGet)
	r.HandleFunc("/suppliers/{id}", a.updateSupplier).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/suppliers/{id}", a.deleteSupplier).Methods(http.MethodDelete)
}

func (a *api) listSuppliers(w http.ResponseWriter, r *http.Request) {
	p, err := a.paging.parse(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := a.services.Suppliers.List(r.Context(), p.offset(), p.PerPage)
	if err != nil {
		fail(w, a.logger, "list suppliers", err)
		return
	}
	respondPage(w, p, results, len(results))
}

// createSupplier answers 200 with the existing record when the phone number
// is already registered.
func (a *api) createSupplier(w http.ResponseWriter, r *http.Request) {
	var input suppliers.CreateInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	supplier, created, err := a.services.Suppliers.Create(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "create supplier", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, supplier)
}

func (a *api) getSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := a.services.Suppliers.Get(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "get supplier", err)
		return
	}
	respondJSON(w, http.StatusOK, supplier)
}

func (a *api) updateSupplier(w http.ResponseWriter, r *http.Request) {
	var input suppliers.UpdateInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	supplier, err := a.services.Suppliers.Update(r.Context(), pathID(r), input)
	if err != nil {
		fail(w, a.logger, "update supplier", err)
		return
	}
	respondJSON(w, http.StatusOK, supplier)
}

func (a *api) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := a.services.Suppliers.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, a.logger, "delete supplier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
