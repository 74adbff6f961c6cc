package handlers

import (
	"context"
	"net/http"
	"time"

	"caselaw-explorer/logger"
	"caselaw-explorer/models"
	"caselaw-explorer/service"

	"github.com/gin-gonic/gin"
)

// CaseHandler handles HTTP requests for cases and topics
type CaseHandler struct {
	search  *service.SearchService
	catalog *service.CatalogService
	log     *logger.Logger
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(search *service.SearchService, catalog *service.CatalogService, log *logger.Logger) *CaseHandler {
	return &CaseHandler{
		search:  search,
		catalog: catalog,
		log:     log,
	}
}

// CaseSummary is the list representation of a case
type CaseSummary struct {
	ID       int64   `json:"id"`
	CaseName string  `json:"case_name"`
	Citation string  `json:"citation"`
	Year     int     `json:"year"`
	Bench    *string `json:"bench"`
	Snippet  *string `json:"snippet"`
}

// SearchHit pairs a case summary with its similarity; similarity is null when browsing
type SearchHit struct {
	Case       CaseSummary `json:"case"`
	Similarity *float64    `json:"similarity"`
}

// CaseDetail is the full case record with its topics
type CaseDetail struct {
	*models.Case
	Topics []models.TopicLink `json:"topics"`
}

func toSummary(c *models.Case) CaseSummary {
	return CaseSummary{
		ID:       c.ID,
		CaseName: c.CaseName,
		Citation: c.Citation,
		Year:     c.Year,
		Bench:    c.Bench,
		Snippet:  c.Snippet(),
	}
}

// filterParams reads the filter and paging parameters shared by /search and /cases
func filterParams(c *gin.Context) (service.SearchRequest, error) {
	var req service.SearchRequest
	var err error

	if req.TopicIDs, err = parseTopicIDs(c.Query("topic_ids")); err != nil {
		return req, err
	}
	if req.YearFrom, err = optionalIntQuery(c, "year_from"); err != nil {
		return req, err
	}
	if req.YearTo, err = optionalIntQuery(c, "year_to"); err != nil {
		return req, err
	}
	if req.Limit, err = intQuery(c, "limit", service.DefaultSearchLimit); err != nil {
		return req, err
	}
	if req.Offset, err = intQuery(c, "offset", 0); err != nil {
		return req, err
	}
	return req, nil
}

// Search handles GET /api/search
func (h *CaseHandler) Search(c *gin.Context) {
	req, err := filterParams(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}
	req.Query = c.Query("q")

	result, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, SearchHit{Case: toSummary(hit.Case), Similarity: hit.Similarity})
	}
	respondOK(c, hits)
}

// ListCases handles GET /api/cases
func (h *CaseHandler) ListCases(c *gin.Context) {
	req, err := filterParams(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	result, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	cases := make([]CaseSummary, 0, len(result.Hits))
	for _, hit := range result.Hits {
		cases = append(cases, toSummary(hit.Case))
	}
	respondOK(c, cases)
}

// GetCase handles GET /api/cases/:id
func (h *CaseHandler) GetCase(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CASE_ID", err.Error())
		return
	}

	result, err := h.catalog.GetCase(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	respondOK(c, CaseDetail{Case: result.Case, Topics: result.Topics})
}

// SimilarCases handles GET /api/cases/:id/similar
func (h *CaseHandler) SimilarCases(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CASE_ID", err.Error())
		return
	}
	limit, err := intQuery(c, "limit", service.DefaultSimilarLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	result, err := h.search.Similar(c.Request.Context(), service.SimilarRequest{CaseID: id, Limit: limit})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, SearchHit{Case: toSummary(hit.Case), Similarity: hit.Similarity})
	}
	respondOK(c, hits)
}

// ListTopics handles GET /api/topics
func (h *CaseHandler) ListTopics(c *gin.Context) {
	topics, err := h.catalog.ListTopics(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	respondOK(c, topics)
}

// Pinger checks that a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health handles GET /health
func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
