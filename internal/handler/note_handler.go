package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/collegeportal/portal-api/internal/middleware"
	"github.com/collegeportal/portal-api/internal/service"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/response"
	"github.com/collegeportal/portal-api/pkg/storage"
)

// NoteHandler wires HTTP endpoints to the note service.
type NoteHandler struct {
	service *service.NoteService
	storage *storage.LocalStorage
}

// NewNoteHandler creates a new handler.
func NewNoteHandler(svc *service.NoteService, store *storage.LocalStorage) *NoteHandler {
	return &NoteHandler{service: svc, storage: store}
}

// Upload godoc
// @Summary Upload study material for a class
// @Description Multipart form with class identifiers, title and file
// @Tags Notes
// @Accept multipart/form-data
// @Produce json
// @Param dept_code formData string true "Department code"
// @Param subject_code formData string true "Subject code"
// @Param semester formData int true "Semester"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param file formData file true "Material file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notes [post]
func (h *NoteHandler) Upload(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	semester, _ := strconv.Atoi(c.PostForm("semester"))
	req := service.UploadNoteRequest{
		DeptCode:    c.PostForm("dept_code"),
		SubjectCode: c.PostForm("subject_code"),
		Semester:    semester,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read file"))
		return
	}
	defer file.Close()

	note, err := h.service.Upload(c.Request.Context(), claims.UserID, req, fileHeader.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, note)
}

// ListForClass godoc
// @Summary List a class's notes
// @Tags Notes
// @Produce json
// @Param dept query string true "Department code"
// @Param subject query string true "Subject code"
// @Param semester query int true "Semester"
// @Success 200 {object} response.Envelope
// @Router /notes [get]
func (h *NoteHandler) ListForClass(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	rows, err := h.service.ListForClass(c.Request.Context(), c.Query("dept"), c.Query("subject"), semester)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

// ListMine godoc
// @Summary List notes visible to the logged-in student
// @Tags Notes
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notes/me [get]
func (h *NoteHandler) ListMine(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, err := h.service.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

// Download godoc
// @Summary Download a note's file
// @Tags Notes
// @Produce octet-stream
// @Param id path int true "Note ID"
// @Success 200
// @Failure 404 {object} response.Envelope
// @Router /notes/{id}/file [get]
func (h *NoteHandler) Download(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid note id"))
		return
	}

	note, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.storage.Open(note.FileURL)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(note.FileURL)+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}
