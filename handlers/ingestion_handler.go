package handlers

import (
	"net/http"

	"caselaw-explorer/logger"
	"caselaw-explorer/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IngestionHandler reports on ingestion runs
type IngestionHandler struct {
	catalog *service.CatalogService
	log     *logger.Logger
}

// NewIngestionHandler creates a new ingestion handler
func NewIngestionHandler(catalog *service.CatalogService, log *logger.Logger) *IngestionHandler {
	return &IngestionHandler{catalog: catalog, log: log}
}

// GetRun handles GET /api/ingestion-runs/:id
func (h *IngestionHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_RUN_ID", "Invalid ingestion run id format")
		return
	}

	run, err := h.catalog.GetIngestionRun(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, run)
}
