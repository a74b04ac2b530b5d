package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

const auditColumns = `id, course_id, eventbrite_id, zoom_id, format, status, report, result_url, error_message, created_by, created_at, updated_at, finished_at`

// AuditRepository persists attendance audit runs.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a run, filling id, status and timestamps when unset.
func (r *AuditRepository) Create(ctx context.Context, run *models.AuditRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.AuditStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.UpdatedAt = run.CreatedAt

	const query = `INSERT INTO audit_runs (` + auditColumns + `)
VALUES (:id, :course_id, :eventbrite_id, :zoom_id, :format, :status, :report, :result_url, :error_message, :created_by, :created_at, :updated_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create audit run: %w", err)
	}
	return nil
}

// GetByID returns a run or ErrNotFound.
func (r *AuditRepository) GetByID(ctx context.Context, id string) (*models.AuditRun, error) {
	const query = `SELECT ` + auditColumns + ` FROM audit_runs WHERE id = $1`
	var run models.AuditRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "audit run %s not found", id)
		}
		return nil, fmt.Errorf("get audit run: %w", err)
	}
	return &run, nil
}

// ListByCourse returns the most recent runs of a course.
func (r *AuditRepository) ListByCourse(ctx context.Context, courseID string, limit int) ([]models.AuditRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + auditColumns + ` FROM audit_runs WHERE course_id = $1 ORDER BY created_at DESC LIMIT $2`
	var runs []models.AuditRun
	if err := r.db.SelectContext(ctx, &runs, query, courseID, limit); err != nil {
		return nil, fmt.Errorf("list audit runs: %w", err)
	}
	return runs, nil
}

// UpdateAuditRunParams defines the mutable fields.
type UpdateAuditRunParams struct {
	Status       *models.AuditStatus
	Report       *models.AttendanceReport
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes and bumps updated_at.
func (r *AuditRepository) Update(ctx context.Context, id string, params UpdateAuditRunParams) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	argPos := 1

	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Report != nil {
		add("report", params.Report)
	}
	if params.ResultURL != nil {
		add("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE audit_runs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update audit run: %w", err)
	}
	return nil
}

// ListQueued fetches queued runs for cold start recovery.
func (r *AuditRepository) ListQueued(ctx context.Context, limit int) ([]models.AuditRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + auditColumns + ` FROM audit_runs WHERE status IN ('QUEUED', 'PROCESSING') ORDER BY created_at ASC LIMIT $1`
	var runs []models.AuditRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued audit runs: %w", err)
	}
	return runs, nil
}

// ListFinishedBefore retrieves finished runs older than cutoff.
func (r *AuditRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AuditRun, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + auditColumns + ` FROM audit_runs WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`
	var runs []models.AuditRun
	if err := r.db.SelectContext(ctx, &runs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished audit runs: %w", err)
	}
	return runs, nil
}
