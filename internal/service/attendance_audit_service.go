package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/internal/repository"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/jobs"
	"github.com/noah-isme/workshop-orchestrator/pkg/notify"
)

// AuditJobType tags queue jobs carrying an audit run id.
const AuditJobType = "attendance_audit"

type auditRunStore interface {
	Create(ctx context.Context, run *models.AuditRun) error
	GetByID(ctx context.Context, id string) (*models.AuditRun, error)
	ListByCourse(ctx context.Context, courseID string, limit int) ([]models.AuditRun, error)
	Update(ctx context.Context, id string, params repository.UpdateAuditRunParams) error
	ListQueued(ctx context.Context, limit int) ([]models.AuditRun, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AuditRun, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// AuditServiceConfig governs recovery, cleanup and check-in detection.
type AuditServiceConfig struct {
	ResultTTL         time.Duration
	CleanupInterval   time.Duration
	CheckedInStatuses []string
}

// Download is an opened artifact ready to stream.
type Download struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// AttendanceAuditService runs reconciliations on demand and manages queued
// audit runs.
type AttendanceAuditService struct {
	repo       auditRunStore
	calendars  calendarLoader
	trainers   trainerDirectory
	reconciler *Reconciler
	queue      jobDispatcher
	exporter   *ExportService
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        AuditServiceConfig
}

// NewAttendanceAuditService wires the service.
func NewAttendanceAuditService(repo auditRunStore, calendars calendarLoader, trainers trainerDirectory, reconciler *Reconciler, queue jobDispatcher, exporter *ExportService, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg AuditServiceConfig) *AttendanceAuditService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if len(cfg.CheckedInStatuses) == 0 {
		cfg.CheckedInStatuses = models.DefaultCheckedInStatuses
	}
	return &AttendanceAuditService{
		repo:       repo,
		calendars:  calendars,
		trainers:   trainers,
		reconciler: reconciler,
		queue:      queue,
		exporter:   exporter,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Reconcile runs the engine synchronously on caller-supplied data.
func (s *AttendanceAuditService) Reconcile(ctx context.Context, req dto.ReconcileRequest) (*models.AttendanceReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reconciliation payload")
	}

	checkedIn := req.CheckedIn
	if checkedIn == nil {
		checkedIn = CheckedInSubset(req.Registrants, s.cfg.CheckedInStatuses)
	}
	trainerEmails := req.TrainerEmails
	if req.IncludeTrainerDirectory && s.trainers != nil {
		trainerEmails = append(append([]string{}, trainerEmails...), s.trainers.Emails()...)
	}

	return s.reconciler.Reconcile(models.ReconcileInput{
		ParticipantRecords: req.ParticipantRecords,
		Registrants:        req.Registrants,
		CheckedIn:          checkedIn,
		TrainerEmails:      trainerEmails,
	})
}

// CreateAudit persists a QUEUED run and hands it to the worker queue.
func (s *AttendanceAuditService) CreateAudit(ctx context.Context, req dto.CreateAuditRequest, actor string) (*models.AuditRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audit request")
	}
	if req.Format == "" {
		req.Format = models.AuditFormatCSV
	}

	if req.EventbriteID == "" || req.ZoomID == "" {
		if err := s.resolveIDs(ctx, &req); err != nil {
			return nil, err
		}
	}

	if err := s.ensureNoAuditInFlight(ctx, req); err != nil {
		return nil, err
	}

	run := &models.AuditRun{
		CourseID:     req.CourseID,
		EventbriteID: req.EventbriteID,
		ZoomID:       req.ZoomID,
		Format:       req.Format,
		Status:       models.AuditStatusQueued,
		CreatedBy:    actor,
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create audit run")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: AuditJobType}); err != nil {
		status := models.AuditStatusFailed
		msg := "failed to enqueue audit"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, run.ID, repository.UpdateAuditRunParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue audit")
	}

	s.logger.Info("audit queued", zap.String("audit_id", run.ID), zap.String("course_id", run.CourseID), zap.String("actor", actor))
	return run, nil
}

// ensureNoAuditInFlight refuses a second run for the same event pair while
// one is still queued or processing.
func (s *AttendanceAuditService) ensureNoAuditInFlight(ctx context.Context, req dto.CreateAuditRequest) error {
	runs, err := s.repo.ListByCourse(ctx, req.CourseID, 20)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit runs")
	}
	for _, run := range runs {
		if run.EventbriteID != req.EventbriteID || run.ZoomID != req.ZoomID {
			continue
		}
		if run.Status == models.AuditStatusQueued || run.Status == models.AuditStatusProcessing {
			return appErrors.Clonef(appErrors.ErrConflict, "audit %s for course %s is still %s", run.ID, req.CourseID, strings.ToLower(string(run.Status)))
		}
	}
	return nil
}

func (s *AttendanceAuditService) resolveIDs(ctx context.Context, req *dto.CreateAuditRequest) error {
	_, course, err := loadCourse(ctx, s.calendars, req.CourseID)
	if err != nil {
		return err
	}
	if req.EventbriteID == "" {
		req.EventbriteID = course.EventbriteID()
	}
	if req.ZoomID == "" {
		req.ZoomID = course.ZoomID()
	}
	var missing []string
	if req.EventbriteID == "" {
		missing = append(missing, models.FieldEventbriteID)
	}
	if req.ZoomID == "" {
		missing = append(missing, models.FieldZoomID)
	}
	if len(missing) > 0 {
		return appErrors.Clonef(appErrors.ErrValidation, "course %s has no %s", req.CourseID, strings.Join(missing, " or "))
	}
	return nil
}

// GetAudit returns a run, preferring the cached copy of finished runs.
func (s *AttendanceAuditService) GetAudit(ctx context.Context, id string) (*models.AuditRun, error) {
	if run, ok := s.cache.GetAudit(ctx, id); ok {
		return run, nil
	}
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit run")
	}
	if run.Status == models.AuditStatusFinished {
		s.cache.SetAudit(ctx, run)
	}
	return run, nil
}

// ListAudits returns the latest runs of a course.
func (s *AttendanceAuditService) ListAudits(ctx context.Context, query dto.AuditListQuery) ([]models.AuditRun, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audit query")
	}
	runs, err := s.repo.ListByCourse(ctx, query.CourseID, query.Limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit runs")
	}
	return runs, nil
}

// ResolveDownload validates a signed token and opens the artifact. Audit
// artifacts must also match their run's current result URL.
func (s *AttendanceAuditService) ResolveDownload(ctx context.Context, token string) (*Download, error) {
	tok, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	if !strings.HasPrefix(tok.OwnerID, CertificateOwnerPrefix) {
		run, err := s.repo.GetByID(ctx, tok.OwnerID)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return nil, err
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit run")
		}
		if run.ResultURL == nil || !strings.HasSuffix(*run.ResultURL, token) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
		}
		if run.Status != models.AuditStatusFinished {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "audit not ready")
		}
	}

	file, err := s.exporter.Open(tok.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "artifact no longer available")
	}
	return &Download{File: file, Filename: path.Base(tok.Path), ExpiresAt: tok.ExpiresAt}, nil
}

// RecoverPendingAudits re-enqueues runs left QUEUED or PROCESSING by a
// previous process.
func (s *AttendanceAuditService) RecoverPendingAudits(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued audits", zap.Error(err))
		return
	}
	for _, run := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: AuditJobType}); err != nil {
			s.logger.Warn("failed to requeue pending audit", zap.String("audit_id", run.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered pending audits", zap.Int("count", len(pending)))
	}
}

// StartCleanup purges expired artifacts every CleanupInterval until ctx ends.
func (s *AttendanceAuditService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *AttendanceAuditService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	const batch = 100
	seen := make(map[string]struct{})
	for {
		runs, err := s.repo.ListFinishedBefore(ctx, cutoff, batch)
		if err != nil {
			s.logger.Warn("cleanup list failed", zap.Error(err))
			return
		}
		progressed := false
		for _, run := range runs {
			if _, ok := seen[run.ID]; ok {
				continue
			}
			seen[run.ID] = struct{}{}
			progressed = true
			s.cache.ForgetAudit(ctx, run.ID)
			if run.ResultURL == nil {
				continue
			}
			tok, err := s.exporter.ParseToken(extractToken(*run.ResultURL), true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(tok.Path); err != nil {
				s.logger.Warn("cleanup delete failed", zap.String("audit_id", run.ID), zap.Error(err))
			}
		}
		if len(runs) < batch || !progressed {
			break
		}
	}
	removed, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("filesystem cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired artifacts removed", zap.Int("count", len(removed)))
	}
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

type auditRenderer interface {
	RenderAudit(run *models.AuditRun, report *models.AttendanceReport) (*ExportResult, error)
}

// AuditWorker executes queued audit runs.
type AuditWorker struct {
	repo              auditRunStore
	events            registrationPlatform
	webinars          webinarPlatform
	trainers          trainerDirectory
	reconciler        *Reconciler
	exporter          auditRenderer
	cache             *CacheService
	notifier          auditNotifier
	metrics           *MetricsService
	logger            *zap.Logger
	maxRetries        int
	checkedInStatuses []string
}

// AuditWorkerDeps groups the worker collaborators. Notifier, Cache, Metrics
// and Trainers may be nil.
type AuditWorkerDeps struct {
	Repo              auditRunStore
	Events            registrationPlatform
	Webinars          webinarPlatform
	Trainers          trainerDirectory
	Reconciler        *Reconciler
	Exporter          auditRenderer
	Cache             *CacheService
	Notifier          auditNotifier
	Metrics           *MetricsService
	Logger            *zap.Logger
	MaxRetries        int
	CheckedInStatuses []string
}

// NewAuditWorker constructs a worker.
func NewAuditWorker(deps AuditWorkerDeps) *AuditWorker {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxRetries < 0 {
		deps.MaxRetries = 0
	}
	if len(deps.CheckedInStatuses) == 0 {
		deps.CheckedInStatuses = models.DefaultCheckedInStatuses
	}
	return &AuditWorker{
		repo:              deps.Repo,
		events:            deps.Events,
		webinars:          deps.Webinars,
		trainers:          deps.Trainers,
		reconciler:        deps.Reconciler,
		exporter:          deps.Exporter,
		cache:             deps.Cache,
		notifier:          deps.Notifier,
		metrics:           deps.Metrics,
		logger:            deps.Logger,
		maxRetries:        deps.MaxRetries,
		checkedInStatuses: deps.CheckedInStatuses,
	}
}

// Handle processes one queue job. Returning an error asks the queue to retry;
// errors that cannot be cured by retrying fail the run at once.
func (w *AuditWorker) Handle(ctx context.Context, job jobs.Job) error {
	run, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			w.logger.Warn("dropping job for unknown audit", zap.String("audit_id", job.ID))
			return nil
		}
		return err
	}
	if run.Status == models.AuditStatusFinished || run.Status == models.AuditStatusFailed {
		return nil
	}

	processing := models.AuditStatusProcessing
	if err := w.repo.Update(ctx, run.ID, repository.UpdateAuditRunParams{Status: &processing}); err != nil {
		return err
	}

	start := time.Now()
	report, result, err := w.process(ctx, run)
	if err != nil {
		final := permanentAuditError(err) || job.Attempt >= w.maxRetries
		w.recordFailure(ctx, run, err, final, time.Since(start))
		if final {
			return nil
		}
		return err
	}

	finished := models.AuditStatusFinished
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, run.ID, repository.UpdateAuditRunParams{
		Status:       &finished,
		Report:       report,
		ResultURL:    &result.URL,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark audit finished", zap.String("audit_id", run.ID), zap.Error(err))
		return err
	}

	run.Status = finished
	run.Report = report
	run.ResultURL = &result.URL
	run.ErrorMessage = nil
	run.FinishedAt = &now
	run.UpdatedAt = now
	w.cache.SetAudit(ctx, run)

	w.metrics.ObserveAudit(string(finished), time.Since(start))
	w.metrics.AddDiscrepancies("unregistered", len(report.Unregistered))
	w.metrics.AddDiscrepancies("not_checked_in", len(report.NotCheckedIn))
	w.metrics.AddDiscrepancies("checked_in_absent", len(report.CheckedInAbsent))

	w.publish(ctx, notify.AuditNotification{
		AuditID:   run.ID,
		CourseID:  run.CourseID,
		Status:    string(finished),
		ResultURL: result.URL,
		Summary:   report.Text(),
	})
	w.logger.Info("audit finished",
		zap.String("audit_id", run.ID),
		zap.Int("present", len(report.Present)),
		zap.Bool("discrepancies", report.HasDiscrepancies()),
	)
	return nil
}

func (w *AuditWorker) process(ctx context.Context, run *models.AuditRun) (*models.AttendanceReport, *ExportResult, error) {
	start := time.Now()
	participants, err := w.webinars.Participants(ctx, run.ZoomID)
	w.metrics.ObserveUpstream(upstreamZoom, "participants", err, time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Upstream(upstreamZoom, err)
	}

	start = time.Now()
	attendees, err := w.events.Attendees(ctx, run.EventbriteID)
	w.metrics.ObserveUpstream(upstreamEventbrite, "attendees", err, time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Upstream(upstreamEventbrite, err)
	}

	registrants := RegistrantsFromAttendees(attendees, w.checkedInStatuses)
	var trainerEmails []string
	if w.trainers != nil {
		trainerEmails = w.trainers.Emails()
	}

	report, err := w.reconciler.Reconcile(models.ReconcileInput{
		ParticipantRecords: AttendanceRecordsFromParticipants(participants),
		Registrants:        registrants,
		CheckedIn:          CheckedInSubset(registrants, w.checkedInStatuses),
		TrainerEmails:      trainerEmails,
	})
	if err != nil {
		return nil, nil, err
	}

	result, err := w.exporter.RenderAudit(run, report)
	if err != nil {
		return nil, nil, fmt.Errorf("render audit: %w", err)
	}
	return report, result, nil
}

func (w *AuditWorker) recordFailure(ctx context.Context, run *models.AuditRun, cause error, final bool, elapsed time.Duration) {
	msg := cause.Error()
	params := repository.UpdateAuditRunParams{ErrorMessage: &msg}
	status := models.AuditStatusQueued
	if final {
		status = models.AuditStatusFailed
		now := time.Now().UTC()
		params.FinishedAt = &now
	}
	params.Status = &status

	if err := w.repo.Update(ctx, run.ID, params); err != nil {
		w.logger.Warn("failed to record audit failure", zap.String("audit_id", run.ID), zap.Error(err))
	}
	if !final {
		return
	}
	w.metrics.ObserveAudit(string(status), elapsed)
	w.logger.Error("audit failed", zap.String("audit_id", run.ID), zap.Error(cause))
	w.publish(ctx, notify.AuditNotification{
		AuditID:  run.ID,
		CourseID: run.CourseID,
		Status:   string(status),
		Summary:  msg,
	})
}

func (w *AuditWorker) publish(ctx context.Context, n notify.AuditNotification) {
	if w.notifier == nil {
		return
	}
	start := time.Now()
	err := w.notifier.PublishAudit(ctx, n)
	w.metrics.ObserveUpstream(upstreamRabbitMQ, "publish", err, time.Since(start))
	if err != nil {
		w.logger.Warn("audit notification not delivered", zap.String("audit_id", n.AuditID), zap.Error(err))
	}
}

func permanentAuditError(err error) bool {
	return errors.Is(err, appErrors.ErrEmptyDataset) ||
		errors.Is(err, appErrors.ErrValidation) ||
		errors.Is(err, appErrors.ErrConfig)
}
