package handlers

import (
	"errors"
	"net/http"

	"caselaw-explorer/llm"
	"caselaw-explorer/logger"
	"caselaw-explorer/service"

	"github.com/gin-gonic/gin"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondServiceError maps service errors onto status codes.
// Unknown errors are logged and reported without detail.
func respondServiceError(c *gin.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrCaseNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Case not found")
	case errors.Is(err, service.ErrIngestionRunNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Ingestion run not found")
	case errors.Is(err, service.ErrInvalidFilter):
		respondError(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
	case llm.IsProviderError(err):
		log.Error("Embedding provider failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusBadGateway, "EMBEDDING_PROVIDER_ERROR", "Embedding provider is unavailable")
	default:
		log.Error("Request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
