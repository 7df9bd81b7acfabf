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

// WorkflowRepository handles workflow definition database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT id, owner, name, description, created_at, updated_at FROM workflows WHERE id = $1`

	var (
		workflow    models.WorkflowDefinition
		description sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.Owner,
		&workflow.Name,
		&description,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.Description = description.String

	if err := r.loadSteps(ctx, &workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow steps: %w", err)
	}

	return &workflow, nil
}

// Save saves a workflow definition and replaces its steps in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, owner, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.Owner,
		workflow.Name,
		nullString(workflow.Description),
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	for _, step := range workflow.Steps {
		if step.ID == "" {
			id, idErr := uuid.NewV7()
			if idErr != nil {
				err = fmt.Errorf("failed to generate step ID: %w", idErr)

				return err
			}

			step.ID = id.String()
		}

		step.WorkflowID = workflow.ID

		config := step.Config
		if len(config) == 0 {
			config = []byte(`{}`)
		}

		stepQuery := `
			INSERT INTO workflow_steps (id, workflow_id, step_number, step_type, config)
			VALUES ($1, $2, $3, $4, $5)
		`

		_, err = tx.ExecContext(ctx, stepQuery, step.ID, workflow.ID, step.StepNumber, step.StepType, []byte(config))
		if err != nil {
			return fmt.Errorf("failed to save workflow step: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflow *models.WorkflowDefinition) error {
	query := `
		SELECT id, workflow_id, step_number, step_type, config
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_number
	`

	rows, err := r.db.QueryContext(ctx, query, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	var steps []*models.WorkflowStep

	for rows.Next() {
		var (
			step       models.WorkflowStep
			configJSON []byte
		)

		err := rows.Scan(&step.ID, &step.WorkflowID, &step.StepNumber, &step.StepType, &configJSON)
		if err != nil {
			return fmt.Errorf("failed to scan workflow step: %w", err)
		}

		step.Config = configJSON
		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating workflow steps: %w", err)
	}

	workflow.Steps = steps

	return nil
}
