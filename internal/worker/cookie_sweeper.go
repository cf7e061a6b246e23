package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/edge-collector/internal/application"
)

// SweepMetrics counts removed cookies.
type SweepMetrics interface {
	CookiesSwept(n int)
}

// CookieSweeper periodically removes expired cookies so storage does not
// grow with identities that will never be sent again.
type CookieSweeper struct {
	store    application.CookieStore
	interval time.Duration
	metrics  SweepMetrics
	now      func() time.Time
	logger   *slog.Logger
}

func NewCookieSweeper(
	store application.CookieStore,
	interval time.Duration,
	metrics SweepMetrics,
	logger *slog.Logger,
) *CookieSweeper {
	return &CookieSweeper{
		store:    store,
		interval: interval,
		metrics:  metrics,
		now:      time.Now,
		logger:   logger,
	}
}

func (w *CookieSweeper) Start(ctx context.Context) {
	w.logger.Info("cookie sweeper started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.sweep(ctx); err != nil {
		w.logger.Error("cookie sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cookie sweeper stopping")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("cookie sweep failed", "error", err)
			}
		}
	}
}

func (w *CookieSweeper) sweep(ctx context.Context) error {
	deleted, err := w.store.DeleteExpired(ctx, w.now())
	if err != nil {
		return err
	}
	if deleted == 0 {
		return nil
	}

	if w.metrics != nil {
		w.metrics.CookiesSwept(deleted)
	}
	w.logger.Info("swept expired cookies", "deleted", deleted)
	return nil
}
