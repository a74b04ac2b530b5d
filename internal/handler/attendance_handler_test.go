package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/middleware"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/internal/service"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

type attendanceServiceMock struct {
	report      *models.AttendanceReport
	run         *models.AuditRun
	runs        []models.AuditRun
	download    *service.Download
	err         error
	lastActor   string
	lastCreate  dto.CreateAuditRequest
	lastQuery   dto.AuditListQuery
	lastToken   string
	lastRequest dto.ReconcileRequest
}

func (m *attendanceServiceMock) Reconcile(ctx context.Context, req dto.ReconcileRequest) (*models.AttendanceReport, error) {
	m.lastRequest = req
	return m.report, m.err
}

func (m *attendanceServiceMock) CreateAudit(ctx context.Context, req dto.CreateAuditRequest, actor string) (*models.AuditRun, error) {
	m.lastCreate = req
	m.lastActor = actor
	return m.run, m.err
}

func (m *attendanceServiceMock) GetAudit(ctx context.Context, id string) (*models.AuditRun, error) {
	return m.run, m.err
}

func (m *attendanceServiceMock) ListAudits(ctx context.Context, query dto.AuditListQuery) ([]models.AuditRun, error) {
	m.lastQuery = query
	return m.runs, m.err
}

func (m *attendanceServiceMock) ResolveDownload(ctx context.Context, token string) (*service.Download, error) {
	m.lastToken = token
	return m.download, m.err
}

func TestAttendanceHandlerReconcile(t *testing.T) {
	mockSvc := &attendanceServiceMock{report: &models.AttendanceReport{
		Present:      []string{"ann@example.org"},
		Unregistered: []models.AttendanceEntry{{Name: "Zed", Email: "zed@example.org"}},
	}}
	handler := NewAttendanceHandler(mockSvc)

	payload := []byte(`{
		"participant_records": [{"user_email": "ann@example.org", "name": "Ann", "duration": 3600}],
		"registrants": {"ann@example.org": {"name": "Ann Lee", "status": "Checked In"}},
		"trainer_emails": ["host@example.org"]
	}`)
	c, w := newGinContext(http.MethodPost, "/attendance/reconcile", payload)
	handler.Reconcile(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mockSvc.lastRequest.ParticipantRecords, 1)
	assert.Equal(t, []string{"host@example.org"}, mockSvc.lastRequest.TrainerEmails)
	assert.Contains(t, mockSvc.lastRequest.Registrants, "ann@example.org")
	assert.Contains(t, w.Body.String(), `"has_discrepancies":true`)
}

func TestAttendanceHandlerReconcileEmptyDataset(t *testing.T) {
	handler := NewAttendanceHandler(&attendanceServiceMock{err: appErrors.ErrEmptyDataset})

	c, w := newGinContext(http.MethodPost, "/attendance/reconcile", []byte(`{"participant_records":[]}`))
	handler.Reconcile(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"EMPTY_DATASET"`)
}

func TestAttendanceHandlerCreateAudit(t *testing.T) {
	mockSvc := &attendanceServiceMock{run: &models.AuditRun{ID: "run-1", CourseID: "PY101-2024", Status: models.AuditStatusQueued}}
	handler := NewAttendanceHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateAuditRequest{CourseID: "PY101-2024", Format: models.AuditFormatPDF})
	c, w := newGinContext(http.MethodPost, "/attendance/audits", payload)
	c.Set(middleware.ContextUserKey, &models.OperatorClaims{Email: "coord@cq.org", Role: models.RoleCoordinator})
	handler.CreateAudit(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "coord@cq.org", mockSvc.lastActor)
	assert.Equal(t, models.AuditFormatPDF, mockSvc.lastCreate.Format)
	assert.Contains(t, w.Body.String(), `"run-1"`)
}

func TestAttendanceHandlerAudits(t *testing.T) {
	mockSvc := &attendanceServiceMock{
		run:  &models.AuditRun{ID: "run-1", Status: models.AuditStatusFinished},
		runs: []models.AuditRun{{ID: "run-1"}, {ID: "run-0"}},
	}
	handler := NewAttendanceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/attendance/audits/run-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	handler.GetAudit(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/attendance/audits?course_id=PY101-2024&limit=5", nil)
	handler.ListAudits(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PY101-2024", mockSvc.lastQuery.CourseID)
	assert.Equal(t, 5, mockSvc.lastQuery.Limit)

	c, w = newGinContext(http.MethodGet, "/attendance/audits?limit=many", nil)
	handler.ListAudits(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerDownload(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "audit.csv")
	require.NoError(t, os.WriteFile(target, []byte("email,status\n"), 0o600))
	file, err := os.Open(target)
	require.NoError(t, err)

	mockSvc := &attendanceServiceMock{download: &service.Download{
		File:      file,
		Filename:  "audit.csv",
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	handler := NewAttendanceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "token", mockSvc.lastToken)
	assert.Equal(t, "email,status\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="audit.csv"`)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
}

func TestAttendanceHandlerDownloadForbidden(t *testing.T) {
	handler := NewAttendanceHandler(&attendanceServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})

	c, w := newGinContext(http.MethodGet, "/export/garbage", nil)
	c.Params = gin.Params{{Key: "token", Value: "garbage"}}
	handler.Download(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}
