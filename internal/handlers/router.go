package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/submission-service/internal/config"
	"github.com/SAP-F-2025/submission-service/internal/metrics"
	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/services"
	"github.com/SAP-F-2025/submission-service/internal/utils"
)

type HandlerManager struct {
	serviceManager    services.ServiceManager
	assessmentHandler *AssessmentHandler
	submissionHandler *SubmissionHandler
	xapiHandler       *XAPIHandler
	authMiddleware    *CasdoorAuthMiddleware
	submitLimiter     gin.HandlerFunc
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	rateLimit config.RateLimitConfig,
) *HandlerManager {
	return &HandlerManager{
		serviceManager:    serviceManager,
		assessmentHandler: NewAssessmentHandler(serviceManager.Assessment(), logger),
		submissionHandler: NewSubmissionHandler(serviceManager.Submission(), logger),
		xapiHandler:       NewXAPIHandler(serviceManager.XAPI(), logger),
		authMiddleware:    authMiddleware,
		submitLimiter:     RateLimitMiddleware(rateLimit.Requests, rateLimit.Window),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	reviewers := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		assessments := v1.Group("/assessments")
		{
			assessments.POST("", reviewers, hm.assessmentHandler.CreateAssessment)
			assessments.GET("", hm.assessmentHandler.ListAssessments)
			assessments.GET("/:id", hm.assessmentHandler.GetAssessment)
			assessments.PUT("/:id/settings", reviewers, hm.assessmentHandler.UpdateSettings)

			// Learner flow
			assessments.POST("/:id/submit", hm.submitLimiter, hm.submissionHandler.Submit)
			assessments.GET("/:id/submissions/me", hm.submissionHandler.ListMySubmissions)

			// Review
			assessments.GET("/:id/submissions", reviewers, hm.submissionHandler.ListSubmissions)
			assessments.GET("/:id/submissions/export", reviewers, hm.submissionHandler.ExportGradebook)
		}

		submissions := v1.Group("/submissions")
		{
			submissions.GET("/:id", hm.submissionHandler.GetSubmission)
			submissions.PUT("/:id/answers/:question_id/grade", reviewers, hm.submissionHandler.RegradeAnswer)
		}

		statements := v1.Group("/xapi/statements")
		{
			statements.POST("", hm.xapiHandler.CreateStatement)
			statements.GET("", reviewers, hm.xapiHandler.ListStatements)
			statements.GET("/:id", reviewers, hm.xapiHandler.GetStatement)
		}
	}

	router.GET("/metrics", metrics.PrometheusHandler())
	router.GET("/health", hm.health)
}

func (hm *HandlerManager) health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   "submission-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
