
package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"support-chatbot/internal/models"
	"support-chatbot/pkg/logger"
)

type Refresher interface {
	Refresh(ctx context.Context) (*models.RefreshSummary, error)
}

// Scheduler triggers refreshes on a cron spec such as "@every 6h" or
// "0 */6 * * *". A tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger
}

func NewScheduler(spec string, r Refresher, timeout time.Duration, log logger.Logger) (*Scheduler, error) {
	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := r.Refresh(ctx); err != nil {
			log.Warn("scheduled refresh failed", logger.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, log: log}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("refresh scheduler started")
}

// Stop halts the schedule and waits for a running refresh to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("refresh scheduler stopped")
}

type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, logger.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, logger.Error(err), logger.Any("details", keysAndValues))
}
