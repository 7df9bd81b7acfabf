// Package persistence provides standardized error types for persistence
// operations.
package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrCampaignNotFound indicates a campaign was not found by the given identifier.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrLeadNotFound indicates a lead was not found by the given identifier.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrRuleNotFound indicates an automation rule was not found.
	ErrRuleNotFound = errors.New("automation rule not found")

	// ErrWorkflowNotFound indicates a workflow definition was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrProgressNotFound indicates a workflow progress row was not found.
	ErrProgressNotFound = errors.New("workflow progress not found")

	// ErrQueueEntryNotFound indicates a dial queue entry was not found.
	ErrQueueEntryNotFound = errors.New("dial queue entry not found")

	// ErrDuplicateQueueEntry indicates an open entry already exists for the
	// (campaign, lead) pair.
	ErrDuplicateQueueEntry = errors.New("open dial queue entry already exists")
)

// IsCampaignNotFound checks if an error indicates a campaign was not found.
func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsDuplicateQueueEntry checks if an error indicates a rejected duplicate
// queue admission.
func IsDuplicateQueueEntry(err error) bool {
	return errors.Is(err, ErrDuplicateQueueEntry)
}
