package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/example/pharma-exchange/internal/domain/stock"
)

// ExpiryLister reports items whose stock expires before a cutoff.
type ExpiryLister interface {
	ItemsExpiringBefore(ctx context.Context, cutoff time.Time) ([]stock.Item, error)
}

// Scheduler runs the periodic expiry report. It never mutates stock;
// the ledger stays request-driven.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	window   time.Duration
	store    ExpiryLister
	logger   *zap.Logger
}

func NewScheduler(schedule string, window time.Duration, store ExpiryLister, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		schedule: schedule,
		window:   window,
		store:    store,
		logger:   logger,
	}
}

// Start registers the expiry report job and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.reportExpiringStock); err != nil {
		s.logger.Error("failed to schedule expiry report", zap.Error(err))
		return
	}

	s.cron.Start()
}

// Stop stops the cron loop.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) reportExpiringStock() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(s.window)
	items, err := s.store.ItemsExpiringBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to generate expiry report", zap.Error(err))
		return
	}

	for _, item := range items {
		s.logger.Warn("stock expiring soon",
			zap.String("item_id", item.ID),
			zap.String("pharmacy_id", item.PharmacyID),
			zap.String("drug_id", item.DrugID),
			zap.Int("total_amount", item.TotalAmount),
			zap.Time("expiration", item.Expiration))
	}
	s.logger.Info("expiry report completed",
		zap.Int("expiring_items", len(items)),
		zap.Time("cutoff", cutoff))
}
