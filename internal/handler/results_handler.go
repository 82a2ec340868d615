package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdrill/quizdrill-backend/internal/response"
	"github.com/quizdrill/quizdrill-backend/internal/results"
)

// ResultsHandler exposes the completed-quiz history.
type ResultsHandler struct {
	history *results.History
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(history *results.History) *ResultsHandler {
	return &ResultsHandler{history: history}
}

// List godoc
// GET /api/v1/results
// Returns all stored results, newest first. ?q= filters by exam ID or
// title substring.
func (h *ResultsHandler) List(c *gin.Context) {
	query := c.Query("q")

	var out = h.history.List()
	if query != "" {
		out = h.history.Search(query)
	}
	response.Success(c, http.StatusOK, gin.H{"results": out})
}

// Search godoc
// GET /api/v1/results/search?q=
// Filters the history by exam ID or title substring. An empty query
// returns everything, same as List.
func (h *ResultsHandler) Search(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"results": h.history.Search(c.Query("q"))})
}

// Stats godoc
// GET /api/v1/results/stats/:exam_id
// Returns aggregate attempt statistics for one exam.
func (h *ResultsHandler) Stats(c *gin.Context) {
	stats, ok := h.history.Stats(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// Trend godoc
// GET /api/v1/results/trend/:exam_id
// Compares recent attempts against earlier ones for one exam.
func (h *ResultsHandler) Trend(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"trend": h.history.Trend(c.Param("exam_id"))})
}

// Export godoc
// GET /api/v1/results/export?format=json|csv
// Streams the full history as a download.
func (h *ResultsHandler) Export(c *gin.Context) {
	switch c.DefaultQuery("format", "json") {
	case "json":
		blob, err := h.history.ExportJSON()
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="results.json"`)
		c.Data(http.StatusOK, "application/json", blob)
	case "csv":
		blob, err := h.history.ExportCSV()
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="results.csv"`)
		c.Data(http.StatusOK, "text/csv", blob)
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"format": "must be json or csv"})
	}
}
