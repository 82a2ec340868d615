package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/parser"
	"github.com/quizdrill/quizdrill-backend/internal/registry"
	"github.com/quizdrill/quizdrill-backend/internal/response"
	"github.com/quizdrill/quizdrill-backend/internal/validator"
)

// ExamHandler exposes the exam catalog.
type ExamHandler struct {
	registry *registry.Registry
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(reg *registry.Registry) *ExamHandler {
	return &ExamHandler{registry: reg}
}

// examSummary is the list view without question bodies.
type examSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	QuestionCount int    `json:"question_count"`
}

// List godoc
// GET /api/v1/exams
// Returns all loaded exams without their question bodies.
func (h *ExamHandler) List(c *gin.Context) {
	exams := h.registry.List()
	out := make([]examSummary, 0, len(exams))
	for _, exam := range exams {
		out = append(out, examSummary{ID: exam.ID, Title: exam.Title, QuestionCount: len(exam.Questions)})
	}
	response.Success(c, http.StatusOK, gin.H{"exams": out})
}

// Get godoc
// GET /api/v1/exams/:exam_id
// Returns the full exam definition including questions and answer keys.
func (h *ExamHandler) Get(c *gin.Context) {
	exam, ok := h.registry.Get(c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// Load godoc
// POST /api/v1/exams
// Parses markdown exam content and registers it under the given ID.
func (h *ExamHandler) Load(c *gin.Context) {
	var req model.LoadExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := parser.ParseExam(req.Content, req.ID)
	if err != nil {
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrExamMalformed,
			map[string]string{"content": err.Error()})
		return
	}

	if err := h.registry.Register(exam); err != nil {
		if errors.Is(err, registry.ErrDuplicate) {
			response.Fail(c, http.StatusConflict, response.ErrDuplicateExam)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"id":             exam.ID,
		"title":          exam.Title,
		"question_count": len(exam.Questions),
	})
}
