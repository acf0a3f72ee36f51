package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/submission-service/internal/repositories"
	"github.com/SAP-F-2025/submission-service/internal/services"
	"github.com/SAP-F-2025/submission-service/internal/utils"
)

type XAPIHandler struct {
	BaseHandler
	xapiService services.XAPIService
}

func NewXAPIHandler(xapiService services.XAPIService, logger utils.Logger) *XAPIHandler {
	return &XAPIHandler{
		BaseHandler: NewBaseHandler(logger),
		xapiService: xapiService,
	}
}

// CreateStatement stores a learning record posted by a client
// @Summary Store xAPI statement
// @Tags xapi
// @Accept json
// @Produce json
// @Param statement body services.CreateStatementRequest true "Statement"
// @Success 201 {object} models.XAPIStatement
// @Failure 400 {object} ErrorResponse
// @Router /xapi/statements [post]
func (h *XAPIHandler) CreateStatement(c *gin.Context) {
	var req services.CreateStatementRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	statement, err := h.xapiService.Create(c.Request.Context(), &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, statement)
}

// GetStatement returns one stored statement
// @Summary Get xAPI statement
// @Tags xapi
// @Produce json
// @Param id path string true "Statement ID"
// @Success 200 {object} models.XAPIStatement
// @Failure 404 {object} ErrorResponse
// @Router /xapi/statements/{id} [get]
func (h *XAPIHandler) GetStatement(c *gin.Context) {
	statement, err := h.xapiService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, statement)
}

// ListStatements queries stored statements
// @Summary List xAPI statements
// @Tags xapi
// @Produce json
// @Param organization_id query string false "Organization"
// @Param user_id query string false "Actor user ID"
// @Param course_id query uint false "Course ID"
// @Param lesson_id query uint false "Lesson ID"
// @Param assessment_id query uint false "Assessment ID"
// @Param verb query string false "Verb IRI"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Success 200 {object} services.StatementListResponse
// @Router /xapi/statements [get]
func (h *XAPIHandler) ListStatements(c *gin.Context) {
	limit, offset := h.paging(c)
	filters := repositories.XAPIStatementFilters{
		CourseID:     h.parseUintQueryPtr(c, "course_id"),
		LessonID:     h.parseUintQueryPtr(c, "lesson_id"),
		AssessmentID: h.parseUintQueryPtr(c, "assessment_id"),
		Limit:        limit,
		Offset:       offset,
	}
	if org := c.Query("organization_id"); org != "" {
		filters.OrganizationID = &org
	}
	if userID := c.Query("user_id"); userID != "" {
		filters.UserID = &userID
	}
	if verb := c.Query("verb"); verb != "" {
		filters.VerbID = &verb
	}

	var err error
	if filters.Since, err = parseTimeQuery(c, "since"); err == nil {
		filters.Until, err = parseTimeQuery(c, "until")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	result, err := h.xapiService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
