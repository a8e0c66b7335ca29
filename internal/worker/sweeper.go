package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/store"
)

const TaskTypeSweep = "stems:sweep"

// SweepStore is the slice of the snapshot store the sweeper needs.
type SweepStore interface {
	Each(ctx context.Context, fn func(*model.StemJobState) error) error
	Update(ctx context.Context, st *model.StemJobState) error
}

// Sweeper fails separation jobs whose last snapshot is older than the
// staleness window. The orchestrator itself never times out, so a stuck
// upstream job would stay "waiting" forever; this runs periodically as the
// platform's staleness policy.
type Sweeper struct {
	jobs       SweepStore
	staleAfter time.Duration
}

func NewSweeper(jobs SweepStore, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		jobs:       jobs,
		staleAfter: staleAfter,
	}
}

// NewSweepTask creates the periodic sweep task
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSweep, nil)
}

// ProcessTask handles one sweep run
func (w *Sweeper) ProcessTask(ctx context.Context, t *asynq.Task) error {
	return w.jobs.Each(ctx, func(st *model.StemJobState) error {
		if st.Status.Terminal() {
			return nil
		}
		if time.Since(st.UpdatedAt) < w.staleAfter {
			return nil
		}

		msg := "Separation timed out waiting for the provider. Please start a new separation."
		st.Status = model.JobStatusFailed
		st.Stage = model.StageDone
		st.Error = &msg
		st.Message = "Separation failed"

		if err := w.jobs.Update(ctx, st); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				// An advance call got there first; it is not stale after all.
				return nil
			}
			return err
		}

		log.Printf("Swept stale job %s (last update %s)", st.JobID, st.UpdatedAt.Format(time.RFC3339))
		return nil
	})
}
