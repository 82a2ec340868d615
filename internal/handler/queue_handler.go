package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdrill/quizdrill-backend/internal/queue"
	"github.com/quizdrill/quizdrill-backend/internal/response"
	"github.com/quizdrill/quizdrill-backend/internal/validator"
)

// QueueHandler exposes the offline action queue.
type QueueHandler struct {
	queue *queue.Queue
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(q *queue.Queue) *QueueHandler {
	return &QueueHandler{queue: q}
}

type onlineRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// Pending godoc
// GET /api/v1/queue/pending
// Returns buffered actions awaiting delivery.
func (h *QueueHandler) Pending(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"online":  h.queue.Online(),
		"pending": h.queue.Pending(),
	})
}

// DeadLetters godoc
// GET /api/v1/queue/deadletter
// Returns actions abandoned after retry exhaustion.
func (h *QueueHandler) DeadLetters(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"deadletter": h.queue.DeadLetters()})
}

// Sync godoc
// POST /api/v1/queue/sync
// Attempts delivery of every pending action and reports the outcome.
func (h *QueueHandler) Sync(c *gin.Context) {
	report := h.queue.Sync(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// SetOnline godoc
// PUT /api/v1/queue/online
// Flips the connectivity flag. Going online triggers a background sync.
func (h *QueueHandler) SetOnline(c *gin.Context) {
	var req onlineRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.queue.SetOnline(*req.Online)
	response.Success(c, http.StatusOK, gin.H{"online": h.queue.Online()})
}

// Clear godoc
// DELETE /api/v1/queue/pending
// Drops all buffered actions. Dead letters are kept for inspection.
func (h *QueueHandler) Clear(c *gin.Context) {
	h.queue.ClearPending()
	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}
