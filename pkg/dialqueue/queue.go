// Package dialqueue manages queue admission, the concurrency governor, and
// stuck-call cleanup.
package dialqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

// ActiveCallWindow bounds how far back a call record may have started and
// still count as active. Records older than this are treated as leaked.
const ActiveCallWindow = 5 * time.Minute

// DefaultStuckStaleness is how long a queue entry may sit in `calling`
// before the cleanup sweep fails it.
const DefaultStuckStaleness = 10 * time.Minute

// Rate governor bounds.
const (
	lowUtilization  = 0.5
	highUtilization = 0.9
	rateCeiling     = 50
	rateFloor       = 10
)

// Service owns dialing queue admission and pacing decisions for a campaign.
type Service struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	window      time.Duration
}

type Option func(*Service)

// WithActiveCallWindow overrides the recency window used when counting
// active calls.
func WithActiveCallWindow(window time.Duration) Option {
	return func(s *Service) {
		s.window = window
	}
}

func NewService(persist persistence.Persistence, logger *slog.Logger, opts ...Option) *Service {
	service := &Service{
		persistence: persist,
		logger:      logger.With("module", "dialqueue"),
		window:      ActiveCallWindow,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// Admit inserts a pending queue entry unless the lead already has an open
// one for the campaign. The postgresql backend additionally enforces this
// with a partial unique index; this check keeps the file backend honest and
// gives a cheaper early answer.
func (s *Service) Admit(ctx context.Context, entry *models.DialQueueEntry) error {
	open, err := s.persistence.DialQueue().HasOpenEntry(ctx, entry.CampaignID, entry.LeadID)
	if err != nil {
		return fmt.Errorf("failed to check open queue entries: %w", err)
	}

	if open {
		return persistence.ErrDuplicateQueueEntry
	}

	err = s.persistence.DialQueue().Save(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to save queue entry: %w", err)
	}

	return nil
}

// ActiveCallCount counts in-flight call records started within the recency
// window.
func (s *Service) ActiveCallCount(ctx context.Context, now time.Time) (int, error) {
	count, err := s.persistence.CallRecords().CountInFlight(ctx, now.Add(-s.window))
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight calls: %w", err)
	}

	return count, nil
}

// CanDispatch reports whether the campaign has concurrency headroom for
// another call.
func (s *Service) CanDispatch(ctx context.Context, campaign *models.Campaign, now time.Time) (bool, error) {
	active, err := s.ActiveCallCount(ctx, now)
	if err != nil {
		return false, err
	}

	return active < campaign.MaxConcurrentCalls, nil
}

// RecommendedRate adapts the base dialing rate to current utilization:
// below half capacity the rate grows 1.5x (capped at 50), above ninety
// percent it shrinks to 0.7x (floored at 10), otherwise the base stands.
func (s *Service) RecommendedRate(ctx context.Context, campaign *models.Campaign, base int, now time.Time) (int, error) {
	if campaign.MaxConcurrentCalls <= 0 {
		return base, nil
	}

	active, err := s.ActiveCallCount(ctx, now)
	if err != nil {
		return 0, err
	}

	utilization := float64(active) / float64(campaign.MaxConcurrentCalls)

	switch {
	case utilization < lowUtilization:
		return min(int(float64(base)*1.5), rateCeiling), nil
	case utilization > highUtilization:
		return max(int(float64(base)*0.7), rateFloor), nil
	default:
		return base, nil
	}
}

// NextPending returns pending entries in dispatch order: priority
// descending, then scheduled time ascending.
func (s *Service) NextPending(ctx context.Context, limit int) ([]*models.DialQueueEntry, error) {
	entries, err := s.persistence.DialQueue().ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queue entries: %w", err)
	}

	return entries, nil
}

// CleanupStuck fails queue entries stuck in `calling` and call records stuck
// in flight for longer than staleness. This sweep is the only call
// cancellation mechanism; it is idempotent.
func (s *Service) CleanupStuck(ctx context.Context, staleness time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-staleness)

	entries, err := s.persistence.DialQueue().MarkStuckFailed(ctx, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stuck queue entries: %w", err)
	}

	records, err := s.persistence.CallRecords().MarkStuckFailed(ctx, cutoff, now)
	if err != nil {
		return entries, fmt.Errorf("failed to fail stuck call records: %w", err)
	}

	if entries+records > 0 {
		s.logger.InfoContext(ctx, "Stuck call cleanup reclaimed items",
			"queue_entries", entries,
			"call_records", records,
		)
	}

	return entries + records, nil
}
