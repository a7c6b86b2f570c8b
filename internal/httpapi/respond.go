package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/inventory"
	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/machines"
	"github.com/printworks/platform/internal/domain/suppliers"
	"github.com/printworks/platform/internal/domain/users"
)

const dateLayout = "2006-01-02"

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// fieldError extracts the field-level detail of any domain validation error.
func fieldError(err error) (field, message string, ok bool) {
	var (
		ce *clients.ValidationError
		se *suppliers.ValidationError
		ie *inventory.ValidationError
		je *jobs.ValidationError
		me *machines.ValidationError
		ue *users.ValidationError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Field, ce.Message, true
	case errors.As(err, &se):
		return se.Field, se.Message, true
	case errors.As(err, &ie):
		return ie.Field, ie.Message, true
	case errors.As(err, &je):
		return je.Field, je.Message, true
	case errors.As(err, &me):
		return me.Field, me.Message, true
	case errors.As(err, &ue):
		return ue.Field, ue.Message, true
	}
	return "", "", false
}

func anyIs(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case anyIs(err, clients.ErrNotImplemented, suppliers.ErrNotImplemented, inventory.ErrNotImplemented,
		jobs.ErrNotImplemented, machines.ErrNotImplemented, users.ErrNotImplemented):
		return http.StatusNotImplemented
	case anyIs(err, clients.ErrNotFound, suppliers.ErrNotFound, inventory.ErrNotFound,
		jobs.ErrNotFound, machines.ErrNotFound, machines.ErrReadingMissing, users.ErrNotFound):
		return http.StatusNotFound
	case anyIs(err, clients.ErrPhoneExists, suppliers.ErrPhoneExists, inventory.ErrCodeExists,
		machines.ErrSerialExists, users.ErrEmailExists, users.ErrUsernameExists,
		clients.ErrInUse, suppliers.ErrInUse, inventory.ErrInUse):
		return http.StatusConflict
	case anyIs(err, jobs.ErrInvalidTransition, jobs.ErrOutsourcedJob, jobs.ErrJobClosed, jobs.ErrOverpayment,
		inventory.ErrInsufficientStock, machines.ErrInvalidMeter, machines.ErrRetired):
		return http.StatusUnprocessableEntity
	case anyIs(err, users.ErrUnknownRole):
		return http.StatusBadRequest
	}
	if _, _, ok := fieldError(err); ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err with the matching status. Unexpected errors are logged
// with op and hidden from the caller.
func fail(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	if field, message, ok := fieldError(err); ok {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": field + ": " + message,
			"field": field,
		})
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", "err", err)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

// paging resolves page/per_page query parameters.
type paging struct {
	defaultSize int
	maxSize     int
}

type page struct {
	Number  int
	PerPage int
}

func (p page) offset() int { return (p.Number - 1) * p.PerPage }

func (p paging) parse(r *http.Request) (page, error) {
	q := r.URL.Query()
	out := page{Number: 1, PerPage: p.defaultSize}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page{}, errors.New("invalid page parameter")
		}
		out.Number = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page{}, errors.New("invalid per_page parameter")
		}
		out.PerPage = n
	}
	if out.PerPage > p.maxSize {
		out.PerPage = p.maxSize
	}
	return out, nil
}

func respondPage(w http.ResponseWriter, p page, data any, count int) {
	respondJSON(w, http.StatusOK, map[string]any{
		"data":     data,
		"count":    count,
		"page":     p.Number,
		"per_page": p.PerPage,
	})
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// dateRange reads optional from/to query parameters. A date-only "to"
// covers the whole day.
func dateRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if from, err = parseDate(v); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from date, expected YYYY-MM-DD")
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = parseDate(v); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		if len(strings.TrimSpace(v)) == len(dateLayout) {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to date must not be before from date")
	}
	return from, to, nil
}

// date accepts "2006-01-02" or RFC 3339 in JSON bodies.
type date struct {
	time.Time
}

func (d *date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	d.Time = t
	return nil
}

func (d *date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time.UTC()
	return &t
}
