package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/prefs"
	"github.com/quizdrill/quizdrill-backend/internal/response"
)

// PrefsHandler exposes validated user preferences.
type PrefsHandler struct {
	prefs *prefs.Manager
}

// NewPrefsHandler creates a new PrefsHandler.
func NewPrefsHandler(manager *prefs.Manager) *PrefsHandler {
	return &PrefsHandler{prefs: manager}
}

// Get godoc
// GET /api/v1/preferences
// Returns saved preferences merged over defaults.
func (h *PrefsHandler) Get(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"preferences": h.prefs.Load()})
}

// Put godoc
// PUT /api/v1/preferences
// Replaces the full preferences record. Invalid records are rejected
// without touching the saved ones.
func (h *PrefsHandler) Put(c *gin.Context) {
	var req model.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload,
			map[string]string{"detail": err.Error()})
		return
	}

	if err := h.prefs.Save(req); err != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation,
			map[string]string{"detail": err.Error()})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"preferences": req})
}

// Export godoc
// GET /api/v1/preferences/export
// Streams the preferences record as a download.
func (h *PrefsHandler) Export(c *gin.Context) {
	blob, err := h.prefs.Export()
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="preferences.json"`)
	c.Data(http.StatusOK, "application/json", blob)
}

// Import godoc
// POST /api/v1/preferences/import
// Replaces preferences with an uploaded record. Fails closed: an invalid
// upload leaves the existing preferences untouched.
func (h *PrefsHandler) Import(c *gin.Context) {
	blob, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.prefs.Import(blob); err != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation,
			map[string]string{"detail": err.Error()})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"preferences": h.prefs.Load()})
}
