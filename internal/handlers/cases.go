package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"case-gateway/internal/common/errors"
	"case-gateway/internal/crm"
)

// Case handlers

// caseResponse is the JSON shape of one case record.
type caseResponse struct {
	ID         string                 `json:"id"`
	UUID       string                 `json:"uuid"`
	Attributes map[string]interface{} `json:"attributes"`
}

func toCaseResponse(record *crm.Record) caseResponse {
	return caseResponse{ID: record.ID, UUID: record.UUID, Attributes: record.Attributes}
}

// parseScope reads filters, sort, and pagination from the query string.
// filter parameters use the field=value convention; sort takes a field name
// with an optional leading '-' for descending.
func parseScope(r *http.Request) crm.QueryScope {
	query := r.URL.Query()
	scope := crm.QueryScope{}

	for key, values := range query {
		if key == "sort" || key == "offset" || key == "length" || len(values) == 0 {
			continue
		}
		scope.Filters = append(scope.Filters, crm.Filter{
			Field: key, Value: values[0], Operator: "=",
		})
	}

	if sortField := query.Get("sort"); sortField != "" {
		desc := strings.HasPrefix(sortField, "-")
		scope.Sort = &crm.Sort{Field: strings.TrimPrefix(sortField, "-"), Desc: desc}
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		scope.Start = offset
	}
	if length, err := strconv.Atoi(query.Get("length")); err == nil {
		scope.Length = length
	}
	return scope
}

// ListCases returns the case set shaped by query-string filters/sort/pagination
// @Summary List cases
// @Description Returns case records, optionally filtered, sorted, and paginated
// @Tags cases
// @Produce json
// @Param sort query string false "Sort field, prefix with - for descending"
// @Param offset query int false "Pagination offset"
// @Param length query int false "Page length"
// @Success 200 {object} map[string]interface{} "Case records keyed by id"
// @Router /api/cases [get]
func (h *Handlers) ListCases(w http.ResponseWriter, r *http.Request) {
	set := h.gateway.Query(r.Context(), parseScope(r))

	cases := make([]caseResponse, 0, set.Len())
	for _, record := range set.Records() {
		cases = append(cases, toCaseResponse(record))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": set.Len(),
	})
}

// GetCasesTable returns the case set shaped for tabular display
// @Summary Get cases as a table
// @Description Returns headers and rows for the rendering layer, cell order matching headers
// @Tags cases
// @Produce json
// @Success 200 {object} crm.Table "Table-shaped case data"
// @Router /api/cases/table [get]
func (h *Handlers) GetCasesTable(w http.ResponseWriter, r *http.Request) {
	set := h.gateway.Query(r.Context(), parseScope(r))
	writeJSON(w, http.StatusOK, crm.BuildTable(set, h.columns))
}

// GetCase returns one case by business id
// @Summary Get a case
// @Tags cases
// @Produce json
// @Param id path string true "Business id (case number)"
// @Success 200 {object} caseResponse "Case record"
// @Failure 404 {object} map[string]string "Case not found"
// @Router /api/cases/{id} [get]
func (h *Handlers) GetCase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record := h.gateway.Load(r.Context(), id)
	if record == nil {
		writeError(w, errors.NotFoundError("case "+id))
		return
	}
	writeJSON(w, http.StatusOK, toCaseResponse(record))
}

// CreateCase creates a new case at the provider
// @Summary Create a case
// @Tags cases
// @Accept json
// @Produce json
// @Success 201 {object} caseResponse "Created case with provider-assigned identifiers"
// @Failure 422 {object} map[string]string "Provider validation failure"
// @Router /api/cases [post]
func (h *Handlers) CreateCase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Attributes map[string]interface{} `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}

	record := &crm.Record{Attributes: body.Attributes}
	if _, err := h.gateway.Save(r.Context(), record); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCaseResponse(record))
}

// UpdateCase patches an existing case
// @Summary Update a case
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Business id (case number)"
// @Success 200 {object} caseResponse "Updated case"
// @Failure 404 {object} map[string]string "Case not found"
// @Router /api/cases/{id} [patch]
func (h *Handlers) UpdateCase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	existing := h.gateway.Load(r.Context(), id)
	if existing == nil {
		writeError(w, errors.NotFoundError("case "+id))
		return
	}

	var body struct {
		Attributes map[string]interface{} `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}

	record := &crm.Record{ID: id, UUID: existing.UUID, Attributes: body.Attributes}
	if _, err := h.gateway.Save(r.Context(), record); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseResponse(record))
}

// DeleteCase removes a case at the provider
// @Summary Delete a case
// @Tags cases
// @Param id path string true "Business id (case number)"
// @Success 204 "Case deleted"
// @Failure 400 {object} map[string]string "Remote identifier not resolvable"
// @Router /api/cases/{id} [delete]
func (h *Handlers) DeleteCase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.gateway.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
