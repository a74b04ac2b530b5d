package service

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/pkg/export"
	"github.com/noah-isme/workshop-orchestrator/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult describes one stored, signed artifact.
type ExportResult struct {
	RelativePath string    `json:"-"`
	Token        string    `json:"-"`
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExportService renders audit reports and keeps every downloadable artifact
// behind a signed URL.
type ExportService struct {
	storage fileStorage
	csv     documentRenderer
	pdf     documentRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf documentRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = signer.TTL()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// AuditDocument lays out a report as one table per bucket.
func AuditDocument(run *models.AuditRun, report *models.AttendanceReport) export.Document {
	doc := export.Document{
		Title: fmt.Sprintf("Attendance audit %s", run.CourseID),
		Summary: []string{
			fmt.Sprintf("Registration event: %s", run.EventbriteID),
			fmt.Sprintf("Webinar: %s", run.ZoomID),
			fmt.Sprintf("Participants: %d, present: %d", report.Participants, len(report.Present)),
			fmt.Sprintf("Presence threshold: %s%% of mean duration %ss",
				strconv.FormatFloat(report.Threshold*100, 'f', -1, 64),
				strconv.FormatFloat(report.Baseline, 'f', 0, 64)),
		},
	}
	if !report.HasDiscrepancies() {
		doc.Summary = append(doc.Summary, "No discrepancies.")
	}

	headers := []string{"name", "email", "detail"}
	entryRows := func(entries []models.AttendanceEntry) [][]string {
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Name, e.Email, ""})
		}
		return rows
	}

	notes := make([][]string, 0, len(report.Notes))
	for _, n := range report.Notes {
		notes = append(notes, []string{n.Name, n.WebinarEmail, "registered as " + n.RegistrationEmail})
	}
	present := make([][]string, 0, len(report.Present))
	for _, email := range report.Present {
		present = append(present, []string{"", email, ""})
	}

	doc.Tables = []export.Table{
		{Title: "unregistered", Headers: headers, Rows: entryRows(report.Unregistered)},
		{Title: "not_checked_in", Headers: headers, Rows: entryRows(report.NotCheckedIn)},
		{Title: "checked_in_absent", Headers: headers, Rows: entryRows(report.CheckedInAbsent)},
		{Title: "identity_notes", Headers: headers, Rows: notes},
		{Title: "present", Headers: headers, Rows: present},
	}
	return doc
}

// RenderAudit renders the report in the run's format, stores it and signs a
// download URL bound to the run.
func (s *ExportService) RenderAudit(run *models.AuditRun, report *models.AttendanceReport) (*ExportResult, error) {
	if run == nil || report == nil {
		return nil, fmt.Errorf("audit run and report are required")
	}
	doc := AuditDocument(run, report)

	var (
		payload []byte
		err     error
	)
	switch run.Format {
	case models.AuditFormatCSV:
		payload, err = s.csv.Render(doc)
	case models.AuditFormatPDF:
		payload, err = s.pdf.Render(doc)
	default:
		err = fmt.Errorf("unsupported format %s", run.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := path.Join("audits", fmt.Sprintf("%s_%s.%s",
		sanitizeFilename(run.CourseID), s.now().UTC().Format("20060102_150405"), run.Format))
	return s.Store(run.ID, filename, payload)
}

// Store saves payload and returns a signed URL for ownerID.
func (s *ExportService) Store(ownerID, filename string, payload []byte) (*ExportResult, error) {
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(ownerID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.DownloadToken, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, defaulting to the result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
