package service

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/pkg/export"
	"github.com/noah-isme/workshop-orchestrator/pkg/storage"
)

func newExportServiceForTest(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
}

func sampleReport() *models.AttendanceReport {
	return &models.AttendanceReport{
		Threshold:    0.5,
		Baseline:     3600,
		Participants: 3,
		Present:      []string{"ann@x.org", "bob@x.org"},
		Notes:        []models.IdentityNote{{Name: "Bob B", WebinarEmail: "bob@x.org", RegistrationEmail: "bob@work.org"}},
		Unregistered: []models.AttendanceEntry{{Name: "Carl C", Email: "carl@x.org"}},
	}
}

func TestExportServiceRenderAuditCSV(t *testing.T) {
	svc := newExportServiceForTest(t)
	run := &models.AuditRun{ID: "run-1", CourseID: "PY101 2024", EventbriteID: "ev", ZoomID: "81", Format: models.AuditFormatCSV}

	result, err := svc.RenderAudit(run, sampleReport())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.True(t, strings.HasPrefix(result.RelativePath, "audits/PY101_2024_"))

	tok, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "run-1", tok.OwnerID)

	file, err := svc.Open(tok.Path)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "section,name,email,detail")
	assert.Contains(t, string(content), "unregistered,Carl C,carl@x.org,")
	assert.Contains(t, string(content), "identity_notes,Bob B,bob@x.org,registered as bob@work.org")
}

func TestExportServiceRenderAuditPDF(t *testing.T) {
	svc := newExportServiceForTest(t)
	run := &models.AuditRun{ID: "run-2", CourseID: "PY101", Format: models.AuditFormatPDF}

	result, err := svc.RenderAudit(run, sampleReport())
	require.NoError(t, err)
	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	head := make([]byte, 4)
	_, err = io.ReadFull(file, head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(head))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newExportServiceForTest(t)
	_, err := svc.RenderAudit(&models.AuditRun{ID: "run-3", Format: "xlsx"}, sampleReport())
	require.Error(t, err)
}

func TestAuditDocumentWithoutDiscrepancies(t *testing.T) {
	doc := AuditDocument(&models.AuditRun{CourseID: "PY101"}, &models.AttendanceReport{Threshold: 0.5, Present: []string{"a@x.org"}})
	assert.Equal(t, "No discrepancies.", doc.Summary[len(doc.Summary)-1])
	assert.Len(t, doc.Tables, 5)
}
