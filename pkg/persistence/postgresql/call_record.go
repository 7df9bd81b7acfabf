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
)

// CallRecordRepository reads back call attempts written by the transport
// layer. The engine itself only writes records when reclaiming stuck rows.
type CallRecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *CallRecordRepository) Save(ctx context.Context, record *models.CallRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate call record ID: %w", err)
		}

		record.ID = id.String()
	}

	query := `
		INSERT INTO call_records (id, campaign_id, lead_id, phone_number, status, outcome,
			duration_seconds, started_at, ended_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			outcome = EXCLUDED.outcome,
			duration_seconds = EXCLUDED.duration_seconds,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.CampaignID,
		record.LeadID,
		nullString(record.PhoneNumber),
		record.Status,
		nullString(string(record.Outcome)),
		record.DurationSeconds,
		record.StartedAt,
		record.EndedAt,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save call record: %w", err)
	}

	return nil
}

// CountInFlight counts in-flight records inside the recency window. Older
// rows are excluded so stale records cannot permanently consume capacity.
func (r *CallRecordRepository) CountInFlight(ctx context.Context, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM call_records
		WHERE status IN ('initiated', 'ringing', 'in_progress')
		  AND created_at >= $1
	`

	var count int

	err := r.db.QueryRowContext(ctx, query, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight calls: %w", err)
	}

	return count, nil
}

func (r *CallRecordRepository) CountForLeadBetween(ctx context.Context, leadID string, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM call_records WHERE lead_id = $1 AND created_at >= $2 AND created_at < $3`

	var count int

	err := r.db.QueryRowContext(ctx, query, leadID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count calls for lead: %w", err)
	}

	return count, nil
}

func (r *CallRecordRepository) CountNoAnswer(ctx context.Context, leadID string) (int, error) {
	query := `SELECT COUNT(*) FROM call_records WHERE lead_id = $1 AND outcome = 'no_answer'`

	var count int

	err := r.db.QueryRowContext(ctx, query, leadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count no-answer calls: %w", err)
	}

	return count, nil
}

func (r *CallRecordRepository) CountForLead(ctx context.Context, leadID string) (int, error) {
	query := `SELECT COUNT(*) FROM call_records WHERE lead_id = $1`

	var count int

	err := r.db.QueryRowContext(ctx, query, leadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count calls for lead: %w", err)
	}

	return count, nil
}

func (r *CallRecordRepository) LatestForLead(ctx context.Context, leadID string) (*models.CallRecord, error) {
	query := `
		SELECT id, campaign_id, lead_id, phone_number, status, outcome,
			duration_seconds, started_at, ended_at, created_at
		FROM call_records
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	record, err := scanCallRecord(r.db.QueryRowContext(ctx, query, leadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan call record: %w", err)
	}

	return record, nil
}

func (r *CallRecordRepository) DayStats(ctx context.Context, campaignID string, from, to time.Time) (*models.CallDayStats, error) {
	query := `
		SELECT
			COUNT(*)
		  , COUNT(*) FILTER (WHERE outcome = 'answered')
		  , COUNT(*) FILTER (WHERE outcome = 'abandoned')
		  , COUNT(*) FILTER (WHERE outcome = 'dnc_violation')
		FROM call_records
		WHERE campaign_id = $1 AND created_at >= $2 AND created_at < $3
	`

	var stats models.CallDayStats

	err := r.db.QueryRowContext(ctx, query, campaignID, from, to).Scan(
		&stats.Total,
		&stats.Answered,
		&stats.Abandoned,
		&stats.DNCViolations,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate day stats: %w", err)
	}

	return &stats, nil
}

func (r *CallRecordRepository) MarkStuckFailed(ctx context.Context, before time.Time, at time.Time) (int, error) {
	query := `
		UPDATE call_records
		SET status = 'failed', ended_at = $2
		WHERE status IN ('initiated', 'ringing', 'in_progress') AND created_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, before, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stuck call records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(affected), nil
}

func scanCallRecord(scanner interface{ Scan(dest ...any) error }) (*models.CallRecord, error) {
	var (
		record               models.CallRecord
		phoneNumber, outcome sql.NullString
	)

	err := scanner.Scan(
		&record.ID,
		&record.CampaignID,
		&record.LeadID,
		&phoneNumber,
		&record.Status,
		&outcome,
		&record.DurationSeconds,
		&record.StartedAt,
		&record.EndedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.PhoneNumber = phoneNumber.String
	record.Outcome = models.CallOutcome(outcome.String)

	return &record, nil
}
