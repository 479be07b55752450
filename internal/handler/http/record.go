package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type RecordHandler interface {
	HasRecord(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
}

type recordHandlerImpl struct {
	decisionService attendance.DecisionService
}

func NewRecordHandler(decisionService attendance.DecisionService) RecordHandler {
	return &recordHandlerImpl{
		decisionService: decisionService,
	}
}

// HasRecord answers whether a person has a record of a check type on a date
func (h *recordHandlerImpl) HasRecord(w http.ResponseWriter, r *http.Request) {
	personID, ok := attendance.ParsePersonID(chi.URLParam(r, "personID"))
	if !ok {
		response.BadRequest(w, "Invalid person ID", nil)
		return
	}

	query := attendance.HasRecordQuery{
		PersonID:  personID,
		Date:      r.URL.Query().Get("date"),
		CheckType: r.URL.Query().Get("check_type"),
	}

	result, err := h.decisionService.HasRecord(r.Context(), query)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Get retrieves one committed record
func (h *recordHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	if recordID == "" {
		response.BadRequest(w, "Record ID is required", nil)
		return
	}

	result, err := h.decisionService.GetRecord(r.Context(), recordID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
