package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/collegeportal/portal-api/internal/middleware"
	"github.com/collegeportal/portal-api/internal/models"
	"github.com/collegeportal/portal-api/internal/service"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/response"
)

// StudentHandler wires HTTP endpoints to rosters and profiles.
type StudentHandler struct {
	service *service.StudentService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// Roster godoc
// @Summary List a class's students in USN order
// @Tags Students
// @Produce json
// @Param dept query string true "Department code"
// @Param semester query int true "Semester"
// @Param section query string true "Section"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) Roster(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	rows, err := h.service.Roster(c.Request.Context(), c.Query("dept"), semester, c.Query("section"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

// Me godoc
// @Summary Profile of the logged-in user
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me [get]
func (h *StudentHandler) Me(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	switch claims.Role {
	case models.RoleStudent:
		profile, err := h.service.StudentProfile(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, profile, nil)
	case models.RoleFaculty:
		profile, err := h.service.FacultyProfile(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, profile, nil)
	default:
		response.JSON(c, http.StatusOK, gin.H{"user_id": claims.UserID, "role": claims.Role}, nil)
	}
}
