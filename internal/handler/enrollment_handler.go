package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hrd-training-api/internal/models"
	"github.com/noah-isme/hrd-training-api/internal/service"
	appErrors "github.com/noah-isme/hrd-training-api/pkg/errors"
	"github.com/noah-isme/hrd-training-api/pkg/response"
)

// EnrollmentHandler exposes registration endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Register godoc
// @Summary Register to a cycle program
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Cycle program ID"
// @Param payload body service.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /programs/{id}/registrations [post]
func (h *EnrollmentHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	// Learners enroll themselves; admins may enroll on behalf of a user.
	if claims := claimsFromContext(c); claims != nil && claims.Role != models.RoleAdmin {
		req.UserID = claims.UserID
	}
	detail, err := h.enrollments.RegisterToProgram(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Decide godoc
// @Summary Decide a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.DecideRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/decision [patch]
func (h *EnrollmentHandler) Decide(c *gin.Context) {
	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.enrollments.DecideRegistration(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Get godoc
// @Summary Get a registration with its module records
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.enrollments.GetRegistration(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role != models.RoleAdmin && claims.UserID != detail.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.OK(c, detail)
}
