package consecutive

import (
	"context"

	"github.com/forbearing/docxfer/logger"
	"github.com/robfig/cron/v3"
)

// Sweeper periodically drives Service.SweepExpired, the "every 30s" policy
// spec.md §4.4 names, using the same scheduler library the teacher uses for
// its own background jobs.
type Sweeper struct {
	svc Service
	cr  *cron.Cron
}

// NewSweeper builds a Sweeper. spec specifies "every 30s" as the documented
// cadence; schedule accepts any standard 5-field cron expression so
// deployments can tune it.
func NewSweeper(svc Service, schedule string) (*Sweeper, error) {
	if len(schedule) == 0 {
		schedule = "@every 30s"
	}
	cr := cron.New()
	s := &Sweeper{svc: svc, cr: cr}
	if _, err := cr.AddFunc(schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron scheduler in the background.
func (s *Sweeper) Start() { s.cr.Start() }

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() { <-s.cr.Stop().Done() }

func (s *Sweeper) run() {
	ctx := context.Background()
	swept, err := s.svc.SweepExpired(ctx)
	if err != nil {
		logger.Consecutive.Errorw("sweep failed", "error", err)
		return
	}
	if swept > 0 {
		logger.Consecutive.Infow("sweep reclaimed expired reservations", "count", swept)
	}
}
