package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-plan-api/internal/dto"
	"github.com/noah-isme/smart-plan-api/internal/middleware"
	"github.com/noah-isme/smart-plan-api/internal/models"
	"github.com/noah-isme/smart-plan-api/internal/service"
	appErrors "github.com/noah-isme/smart-plan-api/pkg/errors"
	"github.com/noah-isme/smart-plan-api/pkg/response"
)

type studyPlanner interface {
	Generate(ctx context.Context, claims *models.JWTClaims, req dto.GenerateStudyPlanRequest) (*dto.StudyPlanResponse, bool, error)
	GenerateBatch(ctx context.Context, claims *models.JWTClaims, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error)
	List(ctx context.Context, claims *models.JWTClaims, query dto.StudyPlanListQuery) ([]models.StudyPlan, *models.Pagination, error)
	Latest(ctx context.Context, claims *models.JWTClaims, studentID string) (*models.StudyPlan, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.StudyPlan, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) error
	Export(ctx context.Context, claims *models.JWTClaims, id, format string) (*service.ExportFile, error)
	Share(ctx context.Context, claims *models.JWTClaims, id string) (*models.StudyPlanShare, error)
	GetShared(ctx context.Context, token string) (*models.StudyPlan, error)
}

// StudyPlanHandler exposes weekly study plan endpoints.
type StudyPlanHandler struct {
	service studyPlanner
}

// NewStudyPlanHandler constructs the handler.
func NewStudyPlanHandler(svc *service.StudyPlanService) *StudyPlanHandler {
	return &StudyPlanHandler{service: svc}
}

// Generate godoc
// @Summary Generate a weekly study plan
// @Description Computes free slots from the weekly schedule, assigns subjects by priority and optionally enriches the plan with an AI tip. Enrichment failures fall back to the deterministic plan.
// @Tags StudyPlans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateStudyPlanRequest true "Weekly schedule and subjects"
// @Success 200 {object} response.Envelope{data=dto.StudyPlanResponse}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /study-plans/generate [post]
func (h *StudyPlanHandler) Generate(c *gin.Context) {
	var req dto.GenerateStudyPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid study plan payload"))
		return
	}
	result, hit, err := h.service.Generate(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// GenerateBatch godoc
// @Summary Generate deterministic plans for several students
// @Tags StudyPlans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BatchGenerateRequest true "Batch items"
// @Success 200 {object} response.Envelope{data=dto.BatchGenerateResponse}
// @Router /study-plans/batch [post]
func (h *StudyPlanHandler) GenerateBatch(c *gin.Context) {
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload"))
		return
	}
	result, err := h.service.GenerateBatch(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// List godoc
// @Summary List stored study plans
// @Tags StudyPlans
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student ID (staff only)"
// @Param week query int false "Week index"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /study-plans [get]
func (h *StudyPlanHandler) List(c *gin.Context) {
	var query dto.StudyPlanListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	plans, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Latest godoc
// @Summary Get the newest stored plan for a student
// @Tags StudyPlans
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student ID (staff only)"
// @Success 200 {object} response.Envelope{data=models.StudyPlan}
// @Router /study-plans/latest [get]
func (h *StudyPlanHandler) Latest(c *gin.Context) {
	plan, err := h.service.Latest(c.Request.Context(), claimsFromContext(c), c.Query("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Get godoc
// @Summary Get a stored study plan
// @Tags StudyPlans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope{data=models.StudyPlan}
// @Failure 404 {object} response.Envelope
// @Router /study-plans/{id} [get]
func (h *StudyPlanHandler) Get(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete a stored study plan
// @Tags StudyPlans
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 204
// @Router /study-plans/{id} [delete]
func (h *StudyPlanHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download a stored study plan
// @Tags StudyPlans
// @Produce application/pdf
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param format query string false "pdf or csv" default(pdf)
// @Success 200 {file} file
// @Router /study-plans/{id}/export [get]
func (h *StudyPlanHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Length", strconv.Itoa(len(file.Data)))
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Share godoc
// @Summary Create a signed share link for a stored plan
// @Tags StudyPlans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 201 {object} response.Envelope{data=models.StudyPlanShare}
// @Router /study-plans/{id}/share [post]
func (h *StudyPlanHandler) Share(c *gin.Context) {
	share, err := h.service.Share(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, share)
}

// Shared godoc
// @Summary Read a shared study plan
// @Tags StudyPlans
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} response.Envelope{data=models.StudyPlan}
// @Failure 410 {object} response.Envelope
// @Router /shared/study-plans/{token} [get]
func (h *StudyPlanHandler) Shared(c *gin.Context) {
	plan, err := h.service.GetShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}
