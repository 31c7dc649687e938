package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/collegeportal/portal-api/internal/models"
	"github.com/collegeportal/portal-api/internal/service"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by USN or email plus password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// RegisterStudents godoc
// @Summary Register a student roster
// @Description Bulk-create student accounts for one department; existing USNs are skipped
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body service.RegisterStudentsRequest true "Roster payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/register/students [post]
func (h *AuthHandler) RegisterStudents(c *gin.Context) {
	var req service.RegisterStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster payload"))
		return
	}

	res, err := h.service.RegisterStudents(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// RegisterFaculty godoc
// @Summary Register a faculty account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body service.RegisterFacultyRequest true "Faculty payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register/faculty [post]
func (h *AuthHandler) RegisterFaculty(c *gin.Context) {
	var req service.RegisterFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid faculty payload"))
		return
	}

	res, err := h.service.RegisterFaculty(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}
