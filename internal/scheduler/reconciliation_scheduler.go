package scheduler

import (
	"time"

	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// orphanGracePeriod is how long an order may wait for a payment session
// before it is reported
const orphanGracePeriod = time.Hour

// ReconciliationScheduler periodically reports orders that were committed
// but never got a payment session attached, so operators can retry or
// cancel them.
type ReconciliationScheduler struct {
	cron      *cron.Cron
	orderRepo repository.OrderRepository
}

func NewReconciliationScheduler(orderRepo repository.OrderRepository) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		cron:      cron.New(),
		orderRepo: orderRepo,
	}
}

func (s *ReconciliationScheduler) Start() error {
	// Hourly at minute 0
	_, err := s.cron.AddFunc("0 * * * *", s.Run)
	if err != nil {
		logger.Error("Failed to add cron job for order reconciliation", err, nil)
		return err
	}

	s.cron.Start()
	logger.Info("Order reconciliation scheduler started (hourly)", nil)

	return nil
}

// Run produces one reconciliation report. Exposed so it can be triggered
// outside the cron schedule.
func (s *ReconciliationScheduler) Run() {
	logger.Info("Starting order reconciliation report", nil)

	cutoff := time.Now().Add(-orphanGracePeriod)
	orders, err := s.orderRepo.FindOrphaned(cutoff)
	if err != nil {
		logger.Error("Failed to collect orphaned orders", err, nil)
		return
	}

	if len(orders) == 0 {
		logger.Info("No orders awaiting a payment session", nil)
		return
	}

	for _, order := range orders {
		logger.Warn("Order has no payment session", map[string]interface{}{
			"order_id":    order.ID,
			"user_id":     order.UserID,
			"total_price": order.TotalPrice,
			"created_at":  order.CreatedAt,
		})
	}

	logger.Warn("Order reconciliation report complete", map[string]interface{}{
		"orphaned_count": len(orders),
		"cutoff":         cutoff,
	})
}

func (s *ReconciliationScheduler) Stop() {
	logger.Info("Stopping order reconciliation scheduler...", nil)
	s.cron.Stop()
	logger.Info("Order reconciliation scheduler stopped", nil)
}
