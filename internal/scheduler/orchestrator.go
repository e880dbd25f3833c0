package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/probe"
	"github.com/hamed0406/securemon/internal/repo"
)

// Job pairs a probe with the pause between its iterations.
type Job struct {
	Probe probe.Probe
	Delay time.Duration
}

// Orchestrator owns the schema bootstrap and one Loop per job. All loops share
// the context passed to Run; cancelling it is the only way to stop them.
type Orchestrator struct {
	Logger *zap.Logger
	Store  repo.RecordStore
	Jobs   []Job
	// Rounds bounds every loop; 0 runs until cancelled.
	Rounds int
}

func NewOrchestrator(logger *zap.Logger, store repo.RecordStore, rounds int, jobs ...Job) *Orchestrator {
	return &Orchestrator{Logger: logger, Store: store, Jobs: jobs, Rounds: rounds}
}

// Run ensures the schema, then blocks until every loop has returned. The
// only error is a schema failure, in which case no probe is started.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := o.Logger.With(zap.String("run_id", runID))

	if err := o.Store.EnsureSchema(ctx); err != nil {
		log.Error("schema_init_failed", zap.Error(err))
		return fmt.Errorf("ensure schema: %w", err)
	}

	names := make([]string, 0, len(o.Jobs))
	for _, j := range o.Jobs {
		names = append(names, j.Probe.Name())
	}
	log.Info("orchestrator_started", zap.Strings("probes", names), zap.Int("rounds", o.Rounds))

	var wg sync.WaitGroup
	for _, j := range o.Jobs {
		l := NewLoop(log, j.Probe, j.Delay, o.Rounds)
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Run(ctx)
		}()
	}
	wg.Wait()

	log.Info("orchestrator_stopped")
	return nil
}
