// Package file provides a file-based persistence implementation backed by
// JSON documents. It serves tests and local development; production runs on
// the postgresql implementation.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root          string
	campaignRepo  *CampaignRepository
	leadRepo      *LeadRepository
	ruleRepo      *RuleRepository
	dialQueueRepo *DialQueueRepository
	callRepo      *CallRecordRepository
	workflowRepo  *WorkflowRepository
	progressRepo  *ProgressRepository
	violationRepo *ViolationRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is tolerated.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.TrimPrefix(root, "file://")

	return &Persistence{
		root:          cleanRoot,
		campaignRepo:  &CampaignRepository{entities: newCollection[models.Campaign](cleanRoot, "campaigns")},
		leadRepo:      &LeadRepository{entities: newCollection[models.Lead](cleanRoot, "leads")},
		ruleRepo:      &RuleRepository{entities: newCollection[models.AutomationRule](cleanRoot, "rules")},
		dialQueueRepo: &DialQueueRepository{entities: newCollection[models.DialQueueEntry](cleanRoot, "dial_queue")},
		callRepo:      &CallRecordRepository{entities: newCollection[models.CallRecord](cleanRoot, "call_records")},
		workflowRepo:  &WorkflowRepository{entities: newCollection[models.WorkflowDefinition](cleanRoot, "workflows")},
		progressRepo:  &ProgressRepository{entities: newCollection[models.LeadWorkflowProgress](cleanRoot, "progress")},
		violationRepo: &ViolationRepository{entities: newCollection[models.ComplianceViolation](cleanRoot, "violations")},
	}
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
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
