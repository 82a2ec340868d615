package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdrill/quizdrill-backend/internal/response"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
)

// StorageHandler exposes durable store health and backup operations.
type StorageHandler struct {
	store *storage.Store
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(store *storage.Store) *StorageHandler {
	return &StorageHandler{store: store}
}

// Usage godoc
// GET /api/v1/storage/usage
// Returns quota usage for the durable store.
func (h *StorageHandler) Usage(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"usage": h.store.Usage()})
}

// Health godoc
// GET /api/v1/storage/health
// Returns the recent storage error log and key count.
func (h *StorageHandler) Health(c *gin.Context) {
	errs := h.store.Errors()
	response.Success(c, http.StatusOK, gin.H{
		"healthy": len(errs) == 0,
		"keys":    len(h.store.Keys()),
		"errors":  errs,
	})
}

// Repair godoc
// POST /api/v1/storage/repair
// Validates every record, restores from per-key backups where possible
// and discards what cannot be recovered.
func (h *StorageHandler) Repair(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"report": h.store.ValidateAndRepair()})
}

// Backup godoc
// GET /api/v1/storage/backup
// Streams a full-store backup as a download.
func (h *StorageHandler) Backup(c *gin.Context) {
	blob, err := h.store.CreateFullBackup()
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="quizdrill-backup.json"`)
	c.Data(http.StatusOK, "application/json", blob)
}

// Restore godoc
// POST /api/v1/storage/restore
// Replaces the store contents with an uploaded backup. Fails closed:
// a backup that cannot be fully applied leaves existing data in place.
func (h *StorageHandler) Restore(c *gin.Context) {
	blob, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 16<<20))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if !h.store.RestoreFullBackup(blob) {
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrRestoreFailed)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"restored": true, "usage": h.store.Usage()})
}
