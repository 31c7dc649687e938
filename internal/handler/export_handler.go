package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/collegeportal/portal-api/internal/middleware"
	"github.com/collegeportal/portal-api/internal/service"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/response"
)

// ExportHandler serves CSV and PDF downloads.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// AttendanceSummary godoc
// @Summary Download the logged-in student's attendance summary
// @Tags Exports
// @Produce octet-stream
// @Param format query string true "csv or pdf"
// @Success 200
// @Failure 400 {object} response.Envelope
// @Router /exports/attendance [get]
func (h *ExportHandler) AttendanceSummary(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := h.service.AttendanceSummary(c.Request.Context(), claims.UserID, service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}

	serve(c, file)
}

// MarksSheet godoc
// @Summary Download a class's grading sheet
// @Tags Exports
// @Produce octet-stream
// @Param dept query string true "Department code"
// @Param subject query string true "Subject code"
// @Param semester query int true "Semester"
// @Param section query string true "Section"
// @Param format query string true "csv or pdf"
// @Success 200
// @Failure 400 {object} response.Envelope
// @Router /exports/marks [get]
func (h *ExportHandler) MarksSheet(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	file, err := h.service.MarksSheet(c.Request.Context(),
		c.Query("dept"), c.Query("subject"), semester, c.Query("section"),
		service.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}

	serve(c, file)
}

func serve(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(200, file.ContentType, file.Data)
}
