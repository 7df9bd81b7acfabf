// Package postgresql provides the PostgreSQL persistence implementation for
// the orchestration engine.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/outdialhq/outdial/pkg/persistence"
	"github.com/outdialhq/outdial/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	campaignRepo  *CampaignRepository
	leadRepo      *LeadRepository
	ruleRepo      *RuleRepository
	dialQueueRepo *DialQueueRepository
	callRepo      *CallRecordRepository
	workflowRepo  *WorkflowRepository
	progressRepo  *ProgressRepository
	violationRepo *ViolationRepository
}

// NewPersistence connects, migrates, and returns a ready persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		campaignRepo:  &CampaignRepository{db: database, logger: logger},
		leadRepo:      &LeadRepository{db: database, logger: logger},
		ruleRepo:      &RuleRepository{db: database, logger: logger},
		dialQueueRepo: &DialQueueRepository{db: database, logger: logger},
		callRepo:      &CallRecordRepository{db: database, logger: logger},
		workflowRepo:  &WorkflowRepository{db: database, logger: logger},
		progressRepo:  &ProgressRepository{db: database, logger: logger},
		violationRepo: &ViolationRepository{db: database, logger: logger},
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Campaigns() persistence.CampaignRepository     { return p.campaignRepo }
func (p *Persistence) Leads() persistence.LeadRepository             { return p.leadRepo }
func (p *Persistence) Rules() persistence.RuleRepository             { return p.ruleRepo }
func (p *Persistence) DialQueue() persistence.DialQueueRepository    { return p.dialQueueRepo }
func (p *Persistence) CallRecords() persistence.CallRecordRepository { return p.callRepo }
func (p *Persistence) Workflows() persistence.WorkflowRepository     { return p.workflowRepo }
func (p *Persistence) Progress() persistence.ProgressRepository      { return p.progressRepo }
func (p *Persistence) Violations() persistence.ViolationRepository   { return p.violationRepo }
