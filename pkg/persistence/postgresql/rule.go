package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

// RuleRepository handles automation rule database operations.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const ruleColumns = `
	id
  , owner
  , campaign_id
  , rule_type
  , conditions
  , actions
  , days_of_week
  , time_windows
  , priority
  , enabled
  , created_at
  , updated_at
`

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRuleNotFound
		}

		return nil, fmt.Errorf("failed to scan automation rule: %w", err)
	}

	return rule, nil
}

// ListEnabled returns enabled rules ordered by priority descending, the
// evaluation order the tick contract requires.
func (r *RuleRepository) ListEnabled(ctx context.Context) ([]*models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE enabled = TRUE ORDER BY priority DESC, created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation rules: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	rules := make([]*models.AutomationRule, 0)

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation rule: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automation rules: %w", err)
	}

	return rules, nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	now := time.Now().UTC()

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	if rule.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate rule ID: %w", err)
		}

		rule.ID = id.String()
	}

	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	daysJSON, err := json.Marshal(rule.DaysOfWeek)
	if err != nil {
		return fmt.Errorf("failed to marshal days of week: %w", err)
	}

	windowsJSON, err := json.Marshal(rule.TimeWindows)
	if err != nil {
		return fmt.Errorf("failed to marshal time windows: %w", err)
	}

	query := `
		INSERT INTO automation_rules (id, owner, campaign_id, rule_type, conditions, actions,
			days_of_week, time_windows, priority, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			campaign_id = EXCLUDED.campaign_id,
			rule_type = EXCLUDED.rule_type,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions,
			days_of_week = EXCLUDED.days_of_week,
			time_windows = EXCLUDED.time_windows,
			priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Owner,
		rule.CampaignID,
		rule.RuleType,
		conditionsJSON,
		actionsJSON,
		daysJSON,
		windowsJSON,
		rule.Priority,
		rule.Enabled,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation rule: %w", err)
	}

	return nil
}

func scanRule(scanner interface{ Scan(dest ...any) error }) (*models.AutomationRule, error) {
	var (
		rule                                               models.AutomationRule
		conditionsJSON, actionsJSON, daysJSON, windowsJSON []byte
	)

	err := scanner.Scan(
		&rule.ID,
		&rule.Owner,
		&rule.CampaignID,
		&rule.RuleType,
		&conditionsJSON,
		&actionsJSON,
		&daysJSON,
		&windowsJSON,
		&rule.Priority,
		&rule.Enabled,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if conditionsJSON != nil {
		if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}

	if actionsJSON != nil {
		if err := json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
	}

	if daysJSON != nil {
		if err := json.Unmarshal(daysJSON, &rule.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("failed to unmarshal days of week: %w", err)
		}
	}

	if windowsJSON != nil {
		if err := json.Unmarshal(windowsJSON, &rule.TimeWindows); err != nil {
			return nil, fmt.Errorf("failed to unmarshal time windows: %w", err)
		}
	}

	return &rule, nil
}
