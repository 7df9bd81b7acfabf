// Package events defines event types published on the intent and compliance
// topics during campaign ticks.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/outdialhq/outdial/pkg/models"
)

type EventType string

// Kafka topics.
const IntentTopic = "outdial.intents"        // Dial and messaging intents for downstream telephony workers
const ComplianceTopic = "outdial.compliance" // Compliance alerts and auto-pause notifications

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Dialing intent events.
	CallDispatchRequestedEvent EventType = "call.dispatch.requested"
	SMSIntentCreatedEvent      EventType = "sms.intent.created"

	// Workflow lifecycle events.
	WorkflowStepExecutedEvent EventType = "workflow.step.executed"

	// Compliance events.
	CampaignPausedEvent    EventType = "campaign.paused"
	ViolationRecordedEvent EventType = "violation.recorded"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	CampaignID string         `json:"campaign_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// CallDispatchRequested asks a telephony worker to place a call for a queue
// entry that cleared admission and the concurrency governor.
type CallDispatchRequested struct {
	BaseEvent

	QueueEntryID string `json:"queue_entry_id"`
	LeadID       string `json:"lead_id"`
	PhoneNumber  string `json:"phone_number"`
	Priority     int    `json:"priority"`
}

func (c CallDispatchRequested) GetType() EventType {
	return CallDispatchRequestedEvent
}

// SMSIntentCreated carries an outbound message for a lead. Generated marks
// messages whose body still has to be produced from the prompt by the
// messaging worker.
type SMSIntentCreated struct {
	BaseEvent

	LeadID      string `json:"lead_id"`
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Tone        string `json:"tone,omitempty"`
	Generated   bool   `json:"generated"`
}

func (s SMSIntentCreated) GetType() EventType {
	return SMSIntentCreatedEvent
}

type WorkflowStepExecuted struct {
	BaseEvent

	ProgressID string          `json:"progress_id"`
	WorkflowID string          `json:"workflow_id"`
	LeadID     string          `json:"lead_id"`
	StepNumber int             `json:"step_number"`
	StepType   models.StepType `json:"step_type"`
}

func (w WorkflowStepExecuted) GetType() EventType {
	return WorkflowStepExecutedEvent
}

type CampaignPaused struct {
	BaseEvent

	Reason      string               `json:"reason"`
	ViolationID string               `json:"violation_id,omitempty"`
	Type        models.ViolationType `json:"violation_type,omitempty"`
}

func (c CampaignPaused) GetType() EventType {
	return CampaignPausedEvent
}

type ViolationRecorded struct {
	BaseEvent

	ViolationID string               `json:"violation_id"`
	Type        models.ViolationType `json:"violation_type"`
	Severity    string               `json:"severity"`
	Details     string               `json:"details,omitempty"`
}

func (v ViolationRecorded) GetType() EventType {
	return ViolationRecordedEvent
}

func NewBaseEvent(eventType EventType, campaignID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		CampaignID: campaignID,
		Metadata:   make(map[string]any),
	}
}
