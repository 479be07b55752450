package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

type CatalogHandler interface {
	Conflicts(w http.ResponseWriter, r *http.Request)
	Invalidate(w http.ResponseWriter, r *http.Request)
}

type catalogHandlerImpl struct {
	catalogService rule.CatalogService
}

func NewCatalogHandler(catalogService rule.CatalogService) CatalogHandler {
	return &catalogHandlerImpl{
		catalogService: catalogService,
	}
}

// Conflicts audits the rule catalog
func (h *catalogHandlerImpl) Conflicts(w http.ResponseWriter, r *http.Request) {
	report, err := h.catalogService.Conflicts(r.Context())
	if err != nil {
		slog.Error("Failed to audit rule catalog", "error", err)
		response.HandleError(w, err)
		return
	}

	response.Success(w, report)
}

// Invalidate drops cached catalog data after a catalog write
func (h *catalogHandlerImpl) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.catalogService.Invalidate()
	slog.Info("Catalog cache invalidated", "by", middleware.Subject(r))

	response.SuccessWithMessage(w, "Catalog cache invalidated", nil)
}
