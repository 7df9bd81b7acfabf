// Package compliance watches campaigns for regulatory violations and pauses
// them when one fires.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outdialhq/outdial/pkg/eventbus"
	"github.com/outdialhq/outdial/pkg/events"
	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

// Regulatory thresholds.
const (
	AbandonmentViolationRate = 0.03
	AbandonmentWarningRate   = 0.025
	DailyVolumeWarning       = 1000
)

// Violation is one failed compliance check inside a report.
type Violation struct {
	Type    models.ViolationType `json:"type"`
	Details string               `json:"details"`
}

// Report is the outcome of checking one campaign at one instant.
type Report struct {
	CampaignID string      `json:"campaign_id"`
	Passed     bool        `json:"passed"`
	Stopped    bool        `json:"stopped"`
	Violations []Violation `json:"violations,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
}

// Monitor runs the compliance checks. Sub-check failures are fail-open by
// default: a check that cannot run is logged and treated as passing, so a
// flaky metrics query never halts dialing on its own. FailClosed flips
// that for deployments that prefer to stop on uncertainty.
type Monitor struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	failClosed  bool
}

type Option func(*Monitor)

// WithFailClosed makes sub-check errors count as violations instead of
// being skipped.
func WithFailClosed() Option {
	return func(m *Monitor) {
		m.failClosed = true
	}
}

func NewMonitor(persist persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger, opts ...Option) *Monitor {
	monitor := &Monitor{
		persistence: persist,
		publisher:   publisher,
		logger:      logger.With("module", "compliance"),
	}

	for _, opt := range opts {
		opt(monitor)
	}

	return monitor
}

// Check evaluates all compliance rules for a campaign without mutating
// anything.
func (m *Monitor) Check(ctx context.Context, campaignID string, now time.Time) (*Report, error) {
	campaign, err := m.persistence.Campaigns().GetByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}

	report := &Report{CampaignID: campaignID, Passed: true}

	localNow := now.In(campaign.Location())
	dayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, localNow.Location())

	stats, err := m.persistence.CallRecords().DayStats(ctx, campaignID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		if m.failClosed {
			return nil, fmt.Errorf("failed to load day stats: %w", err)
		}

		m.logger.WarnContext(ctx, "Day stats unavailable, skipping rate checks",
			"campaign_id", campaignID,
			"error", err,
		)

		stats = nil
	}

	if stats != nil {
		m.checkAbandonment(report, stats)
		m.checkDNC(report, stats)
		m.checkVolume(report, stats)
	}

	m.checkCallingHours(report, campaign, localNow)

	return report, nil
}

func (m *Monitor) checkAbandonment(report *Report, stats *models.CallDayStats) {
	rate := stats.AbandonmentRate()

	switch {
	case rate > AbandonmentViolationRate:
		report.Passed = false
		report.Violations = append(report.Violations, Violation{
			Type:    models.ViolationTypeAbandonmentRate,
			Details: fmt.Sprintf("abandonment rate %.2f%% exceeds %.1f%% limit", rate*100, AbandonmentViolationRate*100),
		})
	case rate >= AbandonmentWarningRate:
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("abandonment rate %.2f%% approaching %.1f%% limit", rate*100, AbandonmentViolationRate*100))
	}
}

func (m *Monitor) checkDNC(report *Report, stats *models.CallDayStats) {
	if stats.DNCViolations == 0 {
		return
	}

	report.Passed = false
	report.Violations = append(report.Violations, Violation{
		Type:    models.ViolationTypeDNC,
		Details: fmt.Sprintf("%d calls reached do-not-call numbers today", stats.DNCViolations),
	})
}

func (m *Monitor) checkVolume(report *Report, stats *models.CallDayStats) {
	if stats.Total > DailyVolumeWarning {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("daily call volume %d exceeds %d", stats.Total, DailyVolumeWarning))
	}
}

func (m *Monitor) checkCallingHours(report *Report, campaign *models.Campaign, localNow time.Time) {
	window := models.TimeWindow{Start: campaign.CallingHoursStart, End: campaign.CallingHoursEnd}
	if window.Contains(localNow.Format("15:04")) {
		return
	}

	report.Passed = false
	report.Violations = append(report.Violations, Violation{
		Type: models.ViolationTypeCallingHours,
		Details: fmt.Sprintf("current time %s outside calling hours %s-%s (%s)",
			localNow.Format("15:04"), campaign.CallingHoursStart, campaign.CallingHoursEnd, campaign.Timezone),
	})
}

// CheckAndEnforce runs Check and auto-pauses the campaign when any
// violation fired. It returns the report with Stopped set when the pause
// happened; the caller's monitoring loop must not re-check a stopped
// campaign until it is explicitly restarted.
func (m *Monitor) CheckAndEnforce(ctx context.Context, campaignID string, now time.Time) (*Report, error) {
	report, err := m.Check(ctx, campaignID, now)
	if err != nil {
		return nil, err
	}

	if report.Passed {
		return report, nil
	}

	err = m.AutoPause(ctx, campaignID, report, now)
	if err != nil {
		return report, err
	}

	report.Stopped = true

	return report, nil
}

// AutoPause pauses the campaign, records the violations, and publishes a
// campaign.paused alert.
func (m *Monitor) AutoPause(ctx context.Context, campaignID string, report *Report, now time.Time) error {
	if len(report.Violations) == 0 {
		return nil
	}

	first := report.Violations[0]
	reason := fmt.Sprintf("compliance violation: %s", first.Details)

	err := m.persistence.Campaigns().UpdateStatus(ctx, campaignID, models.CampaignStatusPaused, reason, now)
	if err != nil {
		return fmt.Errorf("failed to pause campaign: %w", err)
	}

	var firstID string

	for i := range report.Violations {
		violation := &models.ComplianceViolation{
			CampaignID:    campaignID,
			ViolationType: report.Violations[i].Type,
			Reason:        report.Violations[i].Details,
			DetectedAt:    now,
		}

		err = m.persistence.Violations().Save(ctx, violation)
		if err != nil {
			return fmt.Errorf("failed to record violation: %w", err)
		}

		if i == 0 {
			firstID = violation.ID
		}

		m.publishViolation(ctx, campaignID, violation)
	}

	m.logger.WarnContext(ctx, "Campaign auto-paused for compliance violation",
		"campaign_id", campaignID,
		"violations", len(report.Violations),
		"reason", reason,
	)

	if m.publisher == nil {
		return nil
	}

	event := events.CampaignPaused{
		BaseEvent:   events.NewBaseEvent(events.CampaignPausedEvent, campaignID),
		Reason:      reason,
		ViolationID: firstID,
		Type:        first.Type,
	}

	err = m.publisher.Publish(ctx, campaignID, event)
	if err != nil {
		// The pause is already durable; alert delivery is best effort.
		m.logger.ErrorContext(ctx, "Failed to publish campaign paused event",
			"campaign_id", campaignID,
			"error", err,
		)
	}

	return nil
}

func (m *Monitor) publishViolation(ctx context.Context, campaignID string, violation *models.ComplianceViolation) {
	if m.publisher == nil {
		return
	}

	event := events.ViolationRecorded{
		BaseEvent:   events.NewBaseEvent(events.ViolationRecordedEvent, campaignID),
		ViolationID: violation.ID,
		Type:        violation.ViolationType,
		Severity:    "violation",
		Details:     violation.Reason,
	}

	err := m.publisher.Publish(ctx, campaignID, event)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish violation recorded event",
			"campaign_id", campaignID,
			"violation_id", violation.ID,
			"error", err,
		)
	}
}
