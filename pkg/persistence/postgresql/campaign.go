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

// CampaignRepository handles campaign-related database operations.
type CampaignRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const campaignColumns = `
	id
  , owner
  , name
  , status
  , calling_hours_start
  , calling_hours_end
  , timezone
  , max_attempts
  , max_concurrent_calls
  , workflow_id
  , pause_reason
  , paused_at
  , created_at
  , updated_at
`

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	campaign, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrCampaignNotFound
		}

		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}

	return campaign, nil
}

func (r *CampaignRepository) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	campaigns := make([]*models.Campaign, 0)

	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}

		campaigns = append(campaigns, campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

func (r *CampaignRepository) Save(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()

	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now

	if campaign.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate campaign ID: %w", err)
		}

		campaign.ID = id.String()
	}

	query := `
		INSERT INTO campaigns (id, owner, name, status, calling_hours_start, calling_hours_end,
			timezone, max_attempts, max_concurrent_calls, workflow_id, pause_reason, paused_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			calling_hours_start = EXCLUDED.calling_hours_start,
			calling_hours_end = EXCLUDED.calling_hours_end,
			timezone = EXCLUDED.timezone,
			max_attempts = EXCLUDED.max_attempts,
			max_concurrent_calls = EXCLUDED.max_concurrent_calls,
			workflow_id = EXCLUDED.workflow_id,
			pause_reason = EXCLUDED.pause_reason,
			paused_at = EXCLUDED.paused_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		campaign.ID,
		campaign.Owner,
		campaign.Name,
		campaign.Status,
		campaign.CallingHoursStart,
		campaign.CallingHoursEnd,
		campaign.Timezone,
		campaign.MaxAttempts,
		campaign.MaxConcurrentCalls,
		campaign.WorkflowID,
		nullString(campaign.PauseReason),
		campaign.PausedAt,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	return nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus, reason string, at time.Time) error {
	query := `
		UPDATE campaigns
		SET status = $2,
			pause_reason = CASE WHEN $2 = 'paused' THEN $3 ELSE NULL END,
			paused_at = CASE WHEN $2 = 'paused' THEN $4 ELSE NULL END,
			updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, reason, at)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrCampaignNotFound
	}

	return nil
}

func scanCampaign(scanner interface{ Scan(dest ...any) error }) (*models.Campaign, error) {
	var (
		campaign    models.Campaign
		pauseReason sql.NullString
	)

	err := scanner.Scan(
		&campaign.ID,
		&campaign.Owner,
		&campaign.Name,
		&campaign.Status,
		&campaign.CallingHoursStart,
		&campaign.CallingHoursEnd,
		&campaign.Timezone,
		&campaign.MaxAttempts,
		&campaign.MaxConcurrentCalls,
		&campaign.WorkflowID,
		&pauseReason,
		&campaign.PausedAt,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	campaign.PauseReason = pauseReason.String

	return &campaign, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
