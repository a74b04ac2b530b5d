package handler

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/middleware"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/internal/service"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/response"
)

type attendanceService interface {
	Reconcile(ctx context.Context, req dto.ReconcileRequest) (*models.AttendanceReport, error)
	CreateAudit(ctx context.Context, req dto.CreateAuditRequest, actor string) (*models.AuditRun, error)
	GetAudit(ctx context.Context, id string) (*models.AuditRun, error)
	ListAudits(ctx context.Context, query dto.AuditListQuery) ([]models.AuditRun, error)
	ResolveDownload(ctx context.Context, token string) (*service.Download, error)
}

// AttendanceHandler exposes attendance reconciliation and audit runs.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Reconcile godoc
// @Summary Reconcile attendance synchronously
// @Description Compares webinar attendance with registrations and returns the report.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.ReconcileRequest true "Attendance data"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance/reconcile [post]
func (h *AttendanceHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconciliation payload"))
		return
	}
	report, err := h.attendance.Reconcile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, map[string]interface{}{"has_discrepancies": report.HasDiscrepancies()})
}

// CreateAudit godoc
// @Summary Queue an attendance audit
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.CreateAuditRequest true "Audit request"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/audits [post]
func (h *AttendanceHandler) CreateAudit(c *gin.Context) {
	var req dto.CreateAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid audit payload"))
		return
	}
	run, err := h.attendance.CreateAudit(c.Request.Context(), req, middleware.CurrentOperator(c).Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, run)
}

// GetAudit godoc
// @Summary Get an audit run
// @Tags Attendance
// @Produce json
// @Param id path string true "Audit ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/audits/{id} [get]
func (h *AttendanceHandler) GetAudit(c *gin.Context) {
	run, err := h.attendance.GetAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// ListAudits godoc
// @Summary List the audit runs of a course
// @Tags Attendance
// @Produce json
// @Param course_id query string true "Course ID"
// @Param limit query int false "Maximum runs (1-100)"
// @Success 200 {object} response.Envelope
// @Router /attendance/audits [get]
func (h *AttendanceHandler) ListAudits(c *gin.Context) {
	var query dto.AuditListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	runs, err := h.attendance.ListAudits(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{"total": len(runs)})
}

// Download godoc
// @Summary Download a signed artifact
// @Description Streams an audit report or a certificate. The token is the authorization.
// @Tags Attendance
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *AttendanceHandler) Download(c *gin.Context) {
	download, err := h.attendance.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read artifact"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeOf(download.Filename), download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
	})
}

func contentTypeOf(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
