package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

// DialQueueRepository handles dial queue database operations.
type DialQueueRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const dialQueueColumns = `
	id
  , campaign_id
  , lead_id
  , phone_number
  , priority
  , status
  , scheduled_at
  , attempts
  , max_attempts
  , created_at
  , updated_at
`

func (r *DialQueueRepository) GetByID(ctx context.Context, id string) (*models.DialQueueEntry, error) {
	query := `SELECT ` + dialQueueColumns + ` FROM dial_queue WHERE id = $1`

	entry, err := scanQueueEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrQueueEntryNotFound
		}

		return nil, fmt.Errorf("failed to scan queue entry: %w", err)
	}

	return entry, nil
}

// Save inserts or updates a queue entry. The partial unique index over open
// (campaign, lead) pairs turns racing duplicate admissions into
// ErrDuplicateQueueEntry.
func (r *DialQueueRepository) Save(ctx context.Context, entry *models.DialQueueEntry) error {
	now := time.Now().UTC()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	entry.UpdatedAt = now

	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate queue entry ID: %w", err)
		}

		entry.ID = id.String()
	}

	query := `
		INSERT INTO dial_queue (id, campaign_id, lead_id, phone_number, priority, status,
			scheduled_at, attempts, max_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			scheduled_at = EXCLUDED.scheduled_at,
			attempts = EXCLUDED.attempts,
			max_attempts = EXCLUDED.max_attempts,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.CampaignID,
		entry.LeadID,
		entry.PhoneNumber,
		entry.Priority,
		entry.Status,
		entry.ScheduledAt,
		entry.Attempts,
		entry.MaxAttempts,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.ErrDuplicateQueueEntry
		}

		return fmt.Errorf("failed to save queue entry: %w", err)
	}

	return nil
}

func (r *DialQueueRepository) HasOpenEntry(ctx context.Context, campaignID, leadID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM dial_queue
			WHERE campaign_id = $1 AND lead_id = $2 AND status IN ('pending', 'calling')
		)
	`

	var exists bool

	err := r.db.QueryRowContext(ctx, query, campaignID, leadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open queue entry: %w", err)
	}

	return exists, nil
}

func (r *DialQueueRepository) ListPending(ctx context.Context, limit int) ([]*models.DialQueueEntry, error) {
	query := `
		SELECT ` + dialQueueColumns + `
		FROM dial_queue
		WHERE status = 'pending'
		ORDER BY priority DESC, scheduled_at
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending queue entries: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	entries := make([]*models.DialQueueEntry, 0)

	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}

	return entries, nil
}

func (r *DialQueueRepository) UpdateStatus(ctx context.Context, id string, status models.DialQueueStatus, at time.Time) error {
	query := `UPDATE dial_queue SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("failed to update queue entry status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrQueueEntryNotFound
	}

	return nil
}

// MarkStuckFailed reclaims entries stuck in calling since before the cutoff.
// Safe to run repeatedly: already-failed entries no longer match.
func (r *DialQueueRepository) MarkStuckFailed(ctx context.Context, before time.Time, at time.Time) (int, error) {
	query := `
		UPDATE dial_queue
		SET status = 'failed', updated_at = $2
		WHERE status = 'calling' AND updated_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, before, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stuck queue entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(affected), nil
}

func scanQueueEntry(scanner interface{ Scan(dest ...any) error }) (*models.DialQueueEntry, error) {
	var entry models.DialQueueEntry

	err := scanner.Scan(
		&entry.ID,
		&entry.CampaignID,
		&entry.LeadID,
		&entry.PhoneNumber,
		&entry.Priority,
		&entry.Status,
		&entry.ScheduledAt,
		&entry.Attempts,
		&entry.MaxAttempts,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}
