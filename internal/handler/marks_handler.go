package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/collegeportal/portal-api/internal/middleware"
	"github.com/collegeportal/portal-api/internal/service"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/response"
)

// MarksHandler wires HTTP endpoints to the marks service.
type MarksHandler struct {
	service *service.MarksService
}

// NewMarksHandler creates a new handler.
func NewMarksHandler(svc *service.MarksService) *MarksHandler {
	return &MarksHandler{service: svc}
}

// Update godoc
// @Summary Submit scores for one assessment of a class
// @Description Upserts each entry; out-of-range scores are skipped and counted
// @Tags Marks
// @Accept json
// @Produce json
// @Param payload body service.UpdateMarksRequest true "Marks batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /marks [post]
func (h *MarksHandler) Update(c *gin.Context) {
	var req service.UpdateMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid marks payload"))
		return
	}

	res, err := h.service.UpdateClassMarks(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// ClassSheet godoc
// @Summary Grading sheet for a class
// @Tags Marks
// @Produce json
// @Param dept query string true "Department code"
// @Param subject query string true "Subject code"
// @Param semester query int true "Semester"
// @Param section query string true "Section"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /marks/sheet [get]
func (h *MarksHandler) ClassSheet(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	rows, err := h.service.ClassSheet(c.Request.Context(), c.Query("dept"), c.Query("subject"), semester, c.Query("section"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

// MyScores godoc
// @Summary All scores of the logged-in student grouped by subject
// @Tags Marks
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /marks/me [get]
func (h *MarksHandler) MyScores(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, err := h.service.StudentScores(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}
