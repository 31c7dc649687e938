package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/collegeportal/portal-api/internal/middleware"
	"github.com/collegeportal/portal-api/internal/models"
	"github.com/collegeportal/portal-api/internal/service"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/response"
)

// CircularHandler wires HTTP endpoints to the circular service.
type CircularHandler struct {
	service *service.CircularService
}

// NewCircularHandler creates a new handler.
func NewCircularHandler(svc *service.CircularService) *CircularHandler {
	return &CircularHandler{service: svc}
}

// Create godoc
// @Summary Post a circular
// @Description Multipart form with title, content, audience, optional dept_code and attachment
// @Tags Circulars
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param content formData string true "Content"
// @Param audience formData string true "Audience (all, students, faculty, specific_dept)"
// @Param dept_code formData string false "Department code for specific_dept"
// @Param attachment formData file false "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /circulars [post]
func (h *CircularHandler) Create(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.CreateCircularRequest{
		Title:    c.PostForm("title"),
		Content:  c.PostForm("content"),
		Audience: models.Audience(c.PostForm("audience")),
		DeptCode: c.PostForm("dept_code"),
	}

	var (
		attachment     io.Reader
		attachmentName string
	)
	if fileHeader, err := c.FormFile("attachment"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read attachment"))
			return
		}
		defer file.Close()
		attachment = file
		attachmentName = fileHeader.Filename
	}

	circular, err := h.service.Create(c.Request.Context(), claims.UserID, req, attachmentName, attachment)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, circular)
}

// List godoc
// @Summary List circulars visible to the logged-in user
// @Tags Circulars
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /circulars [get]
func (h *CircularHandler) List(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, err := h.service.ListForUser(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

// Get godoc
// @Summary Fetch one circular
// @Tags Circulars
// @Produce json
// @Param id path int true "Circular ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /circulars/{id} [get]
func (h *CircularHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid circular id"))
		return
	}

	row, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, row, nil)
}

// Update godoc
// @Summary Edit a circular's title and content
// @Tags Circulars
// @Accept json
// @Produce json
// @Param id path int true "Circular ID"
// @Param payload body service.UpdateCircularRequest true "Edit payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /circulars/{id} [put]
func (h *CircularHandler) Update(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid circular id"))
		return
	}

	var req service.UpdateCircularRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid circular payload"))
		return
	}

	row, err := h.service.Update(c.Request.Context(), id, claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, row, nil)
}

// Delete godoc
// @Summary Delete a circular
// @Tags Circulars
// @Produce json
// @Param id path int true "Circular ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /circulars/{id} [delete]
func (h *CircularHandler) Delete(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid circular id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Recent godoc
// @Summary Latest circulars regardless of audience
// @Tags Circulars
// @Produce json
// @Param limit query int false "Row limit"
// @Success 200 {object} response.Envelope
// @Router /circulars/recent [get]
func (h *CircularHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	rows, err := h.service.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}
