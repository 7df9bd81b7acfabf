package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

// ProgressRepository handles lead workflow progress database operations.
type ProgressRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const progressColumns = `
	id
  , lead_id
  , workflow_id
  , campaign_id
  , current_step_id
  , status
  , next_action_at
  , started_at
  , last_action_at
  , completed_at
  , removal_reason
`

func (r *ProgressRepository) GetByID(ctx context.Context, id string) (*models.LeadWorkflowProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM lead_workflow_progress WHERE id = $1`

	progress, err := scanProgress(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrProgressNotFound
		}

		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}

	return progress, nil
}

func (r *ProgressRepository) Save(ctx context.Context, progress *models.LeadWorkflowProgress) error {
	if progress.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate progress ID: %w", err)
		}

		progress.ID = id.String()
	}

	if progress.StartedAt.IsZero() {
		progress.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO lead_workflow_progress (id, lead_id, workflow_id, campaign_id, current_step_id,
			status, next_action_at, started_at, last_action_at, completed_at, removal_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			current_step_id = EXCLUDED.current_step_id,
			status = EXCLUDED.status,
			next_action_at = EXCLUDED.next_action_at,
			last_action_at = EXCLUDED.last_action_at,
			completed_at = EXCLUDED.completed_at,
			removal_reason = EXCLUDED.removal_reason
	`

	_, err := r.db.ExecContext(ctx, query,
		progress.ID,
		progress.LeadID,
		progress.WorkflowID,
		nullString(progress.CampaignID),
		nullString(progress.CurrentStepID),
		progress.Status,
		progress.NextActionAt,
		progress.StartedAt,
		progress.LastActionAt,
		progress.CompletedAt,
		nullString(progress.RemovalReason),
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

// ListDue returns executable rows. Removed and completed rows can never
// match because only active rows are selected.
func (r *ProgressRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.LeadWorkflowProgress, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM lead_workflow_progress
		WHERE status = 'active' AND next_action_at <= $1
		ORDER BY next_action_at
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due progress rows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	return collectProgress(rows)
}

func (r *ProgressRepository) ListActiveByLead(ctx context.Context, leadID, workflowID string) ([]*models.LeadWorkflowProgress, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM lead_workflow_progress
		WHERE lead_id = $1
		  AND status IN ('active', 'paused')
		  AND ($2 = '' OR workflow_id::text = $2)
	`

	rows, err := r.db.QueryContext(ctx, query, leadID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress rows for lead: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	return collectProgress(rows)
}

func (r *ProgressRepository) HasActive(ctx context.Context, leadID, workflowID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM lead_workflow_progress
			WHERE lead_id = $1 AND workflow_id = $2 AND status IN ('active', 'paused')
		)
	`

	var exists bool

	err := r.db.QueryRowContext(ctx, query, leadID, workflowID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active progress: %w", err)
	}

	return exists, nil
}

func collectProgress(rows *sql.Rows) ([]*models.LeadWorkflowProgress, error) {
	result := make([]*models.LeadWorkflowProgress, 0)

	for rows.Next() {
		progress, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}

		result = append(result, progress)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress rows: %w", err)
	}

	return result, nil
}

func scanProgress(scanner interface{ Scan(dest ...any) error }) (*models.LeadWorkflowProgress, error) {
	var (
		progress                                 models.LeadWorkflowProgress
		campaignID, currentStepID, removalReason sql.NullString
	)

	err := scanner.Scan(
		&progress.ID,
		&progress.LeadID,
		&progress.WorkflowID,
		&campaignID,
		&currentStepID,
		&progress.Status,
		&progress.NextActionAt,
		&progress.StartedAt,
		&progress.LastActionAt,
		&progress.CompletedAt,
		&removalReason,
	)
	if err != nil {
		return nil, err
	}

	progress.CampaignID = campaignID.String
	progress.CurrentStepID = currentStepID.String
	progress.RemovalReason = removalReason.String

	return &progress, nil
}
