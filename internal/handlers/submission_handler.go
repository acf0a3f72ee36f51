package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/services"
	"github.com/SAP-F-2025/submission-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
}

func NewSubmissionHandler(submissionService services.SubmissionService, logger utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
	}
}

// Submit grades and records one attempt of the caller
// @Summary Submit answers
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param submission body services.SubmitRequest true "Answers keyed by question ID"
// @Success 201 {object} services.SubmitResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /assessments/{id}/submit [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	assessmentID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.SubmitRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	resp, err := h.submissionService.Submit(c.Request.Context(), assessmentID, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Submission recorded",
		"assessment_id", assessmentID,
		"submission_id", resp.SubmissionID,
		"attempt", resp.AttemptNumber,
		"passed", resp.Passed)
	c.JSON(http.StatusCreated, resp)
}

// ListMySubmissions returns the caller's own attempts at an assessment
// @Summary List my submissions
// @Tags submissions
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {array} models.Submission
// @Router /assessments/{id}/submissions/me [get]
func (h *SubmissionHandler) ListMySubmissions(c *gin.Context) {
	assessmentID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	submissions, err := h.submissionService.ListMine(c.Request.Context(), assessmentID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submissions)
}

// ListSubmissions returns every submission to an assessment
// @Summary List submissions
// @Tags submissions
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param user_id query string false "Learner ID"
// @Param passed query bool false "Pass/fail filter"
// @Param date_from query string false "RFC3339 lower bound"
// @Param date_to query string false "RFC3339 upper bound"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} services.SubmissionListResponse
// @Router /assessments/{id}/submissions [get]
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	assessmentID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	filters, err := h.parseSubmissionFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	result, err := h.submissionService.ListByAssessment(c.Request.Context(), assessmentID, filters, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportGradebook streams the assessment's submissions as an XLSX workbook
// @Summary Export gradebook
// @Tags submissions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Assessment ID"
// @Success 200 {file} file
// @Router /assessments/{id}/submissions/export [get]
func (h *SubmissionHandler) ExportGradebook(c *gin.Context) {
	assessmentID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	// Buffered so that a failure halfway through still yields a JSON error
	var buf bytes.Buffer
	if err := h.submissionService.ExportGradebook(c.Request.Context(), assessmentID, user, &buf); err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("gradebook-assessment-%d.xlsx", assessmentID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetSubmission returns a submission with its graded answers
// @Summary Get submission
// @Tags submissions
// @Produce json
// @Param id path uint true "Submission ID"
// @Success 200 {object} models.Submission
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	submissionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.GetDetails(c.Request.Context(), submissionID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// RegradeAnswer sets the instructor score of one answer and recomputes the totals
// @Summary Re-grade answer
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path uint true "Submission ID"
// @Param question_id path uint true "Question ID"
// @Param grade body services.RegradeRequest true "Score and feedback"
// @Success 200 {object} models.Submission
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /submissions/{id}/answers/{question_id}/grade [put]
func (h *SubmissionHandler) RegradeAnswer(c *gin.Context) {
	submissionID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := h.parseIDParam(c, "question_id")
	if !ok {
		return
	}
	var req services.RegradeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.RegradeEssay(c.Request.Context(), submissionID, questionID, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Answer re-graded", "submission_id", submissionID, "question_id", questionID)
	c.JSON(http.StatusOK, submission)
}

func (h *SubmissionHandler) parseSubmissionFilters(c *gin.Context) (repositories.SubmissionFilters, error) {
	limit, offset := h.paging(c)
	filters := repositories.SubmissionFilters{Limit: limit, Offset: offset}

	if userID := c.Query("user_id"); userID != "" {
		filters.UserID = &userID
	}
	if raw := c.Query("passed"); raw != "" {
		passed, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, fmt.Errorf("passed: %w", err)
		}
		filters.Passed = &passed
	}
	var err error
	if filters.DateFrom, err = parseTimeQuery(c, "date_from"); err != nil {
		return filters, err
	}
	if filters.DateTo, err = parseTimeQuery(c, "date_to"); err != nil {
		return filters, err
	}
	return filters, nil
}

func parseTimeQuery(c *gin.Context, param string) (*time.Time, error) {
	raw := c.Query(param)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", param, err)
	}
	return &t, nil
}
