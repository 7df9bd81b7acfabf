package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// StepType is the closed set of workflow step kinds.
type StepType string

const (
	StepTypeCall      StepType = "call"
	StepTypeSMS       StepType = "sms"
	StepTypeAISMS     StepType = "ai_sms"
	StepTypeWait      StepType = "wait"
	StepTypeCondition StepType = "condition"
)

// WorkflowDefinition is an ordered sequence of typed steps a lead is
// progressed through over time.
type WorkflowDefinition struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Name        string          `json:"name" validate:"required,min=3"`
	Description string          `json:"description,omitempty"`
	Steps       []*WorkflowStep `json:"steps"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// FirstStep returns the step with the lowest step number, or nil for an
// empty workflow.
func (w *WorkflowDefinition) FirstStep() *WorkflowStep {
	var first *WorkflowStep
	for _, step := range w.Steps {
		if first == nil || step.StepNumber < first.StepNumber {
			first = step
		}
	}

	return first
}

// StepByID finds a step by its identifier.
func (w *WorkflowDefinition) StepByID(id string) *WorkflowStep {
	for _, step := range w.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// StepsAfter returns the steps strictly after the given step number,
// ordered ascending.
func (w *WorkflowDefinition) StepsAfter(stepNumber int) []*WorkflowStep {
	var following []*WorkflowStep
	for _, step := range w.Steps {
		if step.StepNumber > stepNumber {
			following = append(following, step)
		}
	}

	sort.Slice(following, func(i, j int) bool {
		return following[i].StepNumber < following[j].StepNumber
	})

	return following
}

// WorkflowStep is one typed step in a workflow. Config holds the raw JSON
// payload for the step's type and is decoded into a typed variant via
// DecodeConfig.
type WorkflowStep struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	StepNumber int             `json:"step_number" validate:"min=1"`
	StepType   StepType        `json:"step_type"   validate:"required"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// StepConfig is the sealed set of per-type step configurations.
type StepConfig interface {
	stepConfig()
}

// CallStepConfig schedules a call attempt through the dialing queue.
type CallStepConfig struct {
	Priority    int `json:"priority"`
	MaxAttempts int `json:"max_attempts" validate:"omitempty,min=1"`
}

// SMSStepConfig sends a fixed-text SMS through the messaging transport.
type SMSStepConfig struct {
	Message string `json:"message" validate:"required"`
}

// AISMSStepConfig sends a generated SMS; the engine only carries the prompt.
type AISMSStepConfig struct {
	Prompt string `json:"prompt" validate:"required"`
	Tone   string `json:"tone,omitempty"`
}

// WaitStepConfig delays the next step. TimeOfDay, when set, snaps the
// computed time to that wall clock, rolling to the next day if already past.
type WaitStepConfig struct {
	DelayMinutes int    `json:"delay_minutes" validate:"min=0"`
	DelayHours   int    `json:"delay_hours"   validate:"min=0"`
	DelayDays    int    `json:"delay_days"    validate:"min=0"`
	TimeOfDay    string `json:"time_of_day,omitempty" validate:"omitempty,len=5"` // "HH:MM"
}

// Delay returns the configured total delay.
func (c WaitStepConfig) Delay() time.Duration {
	minutes := c.DelayMinutes + c.DelayHours*60 + c.DelayDays*1440

	return time.Duration(minutes) * time.Minute
}

// ConditionField names the lead attribute a condition step inspects.
type ConditionField string

const (
	ConditionFieldDisposition  ConditionField = "disposition"
	ConditionFieldLeadStatus   ConditionField = "lead_status"
	ConditionFieldCallOutcome  ConditionField = "call_outcome"
	ConditionFieldAttemptCount ConditionField = "attempt_count"
)

// ConditionOperator is the comparison applied by a condition step.
type ConditionOperator string

const (
	ConditionOperatorEquals    ConditionOperator = "equals"
	ConditionOperatorNotEquals ConditionOperator = "not_equals"
)

// BranchAction is what a condition step does on its then/else arm.
type BranchAction string

const (
	BranchActionContinue    BranchAction = "continue"
	BranchActionSkip        BranchAction = "skip"
	BranchActionEndWorkflow BranchAction = "end_workflow"
)

// ConditionStepConfig branches the workflow on a lead attribute.
type ConditionStepConfig struct {
	Field      ConditionField    `json:"condition_field"    validate:"required,oneof=disposition lead_status call_outcome attempt_count"`
	Operator   ConditionOperator `json:"condition_operator" validate:"required,oneof=equals not_equals"`
	Value      string            `json:"condition_value"`
	ThenAction BranchAction      `json:"then_action" validate:"required,oneof=continue skip end_workflow"`
	ElseAction BranchAction      `json:"else_action" validate:"required,oneof=continue skip end_workflow"`
}

func (CallStepConfig) stepConfig()      {}
func (SMSStepConfig) stepConfig()       {}
func (AISMSStepConfig) stepConfig()     {}
func (WaitStepConfig) stepConfig()      {}
func (ConditionStepConfig) stepConfig() {}

// DecodeConfig unmarshals and validates the step's raw config into its typed
// variant. Unknown step types are rejected rather than defaulted.
func (s *WorkflowStep) DecodeConfig() (StepConfig, error) {
	raw := s.Config
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var (
		cfg StepConfig
		err error
	)

	switch s.StepType {
	case StepTypeCall:
		var c CallStepConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case StepTypeSMS:
		var c SMSStepConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case StepTypeAISMS:
		var c AISMSStepConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case StepTypeWait:
		var c WaitStepConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case StepTypeCondition:
		var c ConditionStepConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, s.StepType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s step config: %w", s.StepType, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid %s step config: %w", s.StepType, err)
	}

	return cfg, nil
}
