package worker

import (
	"context"
	"log/slog"
	"time"
)

// PaymentSweeper re-checks stale pending payment transactions against their
// provider; it compensates for lost webhooks.
type PaymentSweeper interface {
	SweepPending(ctx context.Context) (int, error)
}

// NotificationReaper deletes read notifications past the retention window.
type NotificationReaper interface {
	Reap(ctx context.Context) (int64, error)
}

type ReconciliationWorker struct {
	payments      PaymentSweeper
	notifications NotificationReaper
	interval      time.Duration
	log           *slog.Logger
}

func NewReconciliationWorker(
	payments PaymentSweeper,
	notifications NotificationReaper,
	interval time.Duration,
	log *slog.Logger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		payments:      payments,
		notifications: notifications,
		interval:      interval,
		log:           log,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.Info("reconciliation worker started", "interval", rw.interval)

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			rw.process(ctx)
		}
	}
}

func (rw *ReconciliationWorker) process(ctx context.Context) {
	n, err := rw.payments.SweepPending(ctx)
	if err != nil {
		rw.log.Error("payment sweep failed", "err", err)
	} else if n > 0 {
		rw.log.Info("payment sweep re-verified stale transactions", "count", n)
	}

	reaped, err := rw.notifications.Reap(ctx)
	if err != nil {
		rw.log.Error("notification reaping failed", "err", err)
	} else if reaped > 0 {
		rw.log.Info("reaped old notifications", "count", reaped)
	}
}
