// internal/lifecycle/sweeper.go
package lifecycle

import (
	"context"
	"time"

	"subscription-bot/internal/common/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Sweeper runs the expiry sweep on a fixed wall-clock schedule.
type Sweeper struct {
	engine   *Engine
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	logger   logger.Logger
}

func NewSweeper(engine *Engine, schedule string, timeout time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		engine:   engine,
		cron:     cron.New(),
		schedule: schedule,
		timeout:  timeout,
		logger:   log.WithFields(map[string]interface{}{"component": "sweeper"}),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sweeper started", map[string]interface{}{"schedule": s.schedule})
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped", nil)
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	runLog := s.logger.WithFields(map[string]interface{}{"runId": uuid.NewString()})
	runLog.Info("sweep starting", nil)

	stats, err := s.engine.Sweep(ctx, time.Now().UTC())
	if err != nil {
		runLog.Error("sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	runLog.Info("sweep completed", map[string]interface{}{
		"scanned":  stats.Scanned,
		"reminded": stats.Reminded,
		"expired":  stats.Expired,
	})
}
