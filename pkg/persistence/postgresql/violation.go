package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outdialhq/outdial/pkg/models"
)

// ViolationRepository stores the append-only compliance audit trail.
// Rows are inserted once and never updated.
type ViolationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ViolationRepository) Save(ctx context.Context, violation *models.ComplianceViolation) error {
	if violation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate violation ID: %w", err)
		}

		violation.ID = id.String()
	}

	if violation.DetectedAt.IsZero() {
		violation.DetectedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO compliance_violations (id, campaign_id, violation_type, reason, detected_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		violation.ID,
		violation.CampaignID,
		violation.ViolationType,
		violation.Reason,
		violation.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save compliance violation: %w", err)
	}

	return nil
}

func (r *ViolationRepository) ListByCampaign(ctx context.Context, campaignID string) ([]*models.ComplianceViolation, error) {
	query := `
		SELECT id, campaign_id, violation_type, reason, detected_at
		FROM compliance_violations
		WHERE campaign_id = $1
		ORDER BY detected_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query compliance violations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	violations := make([]*models.ComplianceViolation, 0)

	for rows.Next() {
		var violation models.ComplianceViolation

		err := rows.Scan(
			&violation.ID,
			&violation.CampaignID,
			&violation.ViolationType,
			&violation.Reason,
			&violation.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compliance violation: %w", err)
		}

		violations = append(violations, &violation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compliance violations: %w", err)
	}

	return violations, nil
}
