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

// LeadRepository handles lead-related database operations.
type LeadRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const leadColumns = `
	id
  , owner
  , campaign_id
  , phone_number
  , status
  , do_not_call
  , disposition
  , last_contacted_at
  , created_at
  , updated_at
`

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrLeadNotFound
		}

		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	return lead, nil
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	now := time.Now().UTC()

	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}

	lead.UpdatedAt = now

	if lead.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate lead ID: %w", err)
		}

		lead.ID = id.String()
	}

	query := `
		INSERT INTO leads (id, owner, campaign_id, phone_number, status, do_not_call,
			disposition, last_contacted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			campaign_id = EXCLUDED.campaign_id,
			phone_number = EXCLUDED.phone_number,
			status = EXCLUDED.status,
			do_not_call = EXCLUDED.do_not_call,
			disposition = EXCLUDED.disposition,
			last_contacted_at = EXCLUDED.last_contacted_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		lead.ID,
		lead.Owner,
		lead.CampaignID,
		lead.PhoneNumber,
		lead.Status,
		lead.DoNotCall,
		nullString(lead.Disposition),
		lead.LastContactedAt,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	return nil
}

// FindCandidates returns contactable leads for the rule evaluator. Leads with
// do_not_call set are always excluded at the query level.
func (r *LeadRepository) FindCandidates(ctx context.Context, filter persistence.CandidateFilter) ([]*models.Lead, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}

	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE owner = $1
		  AND do_not_call = FALSE
		  AND status = ANY($2)
		  AND ($3 = '' OR campaign_id::text = $3)
		ORDER BY created_at
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, filter.Owner, pq.Array(statuses), filter.CampaignID, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate leads: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	leads := make([]*models.Lead, 0)

	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

func scanLead(scanner interface{ Scan(dest ...any) error }) (*models.Lead, error) {
	var (
		lead        models.Lead
		disposition sql.NullString
	)

	err := scanner.Scan(
		&lead.ID,
		&lead.Owner,
		&lead.CampaignID,
		&lead.PhoneNumber,
		&lead.Status,
		&lead.DoNotCall,
		&disposition,
		&lead.LastContactedAt,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.Disposition = disposition.String

	return &lead, nil
}
