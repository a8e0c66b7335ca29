package worker

import (
	"context"
	"testing"
	"time"

	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/store"
)

type fakeSweepStore struct {
	jobs      map[string]*model.StemJobState
	updateErr error
}

func (f *fakeSweepStore) Each(_ context.Context, fn func(*model.StemJobState) error) error {
	for _, st := range f.jobs {
		if err := fn(st.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSweepStore) Update(_ context.Context, st *model.StemJobState) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	st.Version++
	st.UpdatedAt = time.Now().UTC()
	f.jobs[st.JobID] = st.Clone()
	return nil
}

func jobWithAge(id string, status model.JobStatus, age time.Duration) *model.StemJobState {
	return &model.StemJobState{
		JobID:     id,
		Status:    status,
		Stage:     model.StageDereverbWait,
		UpdatedAt: time.Now().UTC().Add(-age),
	}
}

func TestSweeper_FailsStaleRunningJobs(t *testing.T) {
	jobs := &fakeSweepStore{jobs: map[string]*model.StemJobState{
		"stale":  jobWithAge("stale", model.JobStatusRunning, 2*time.Hour),
		"fresh":  jobWithAge("fresh", model.JobStatusRunning, 5*time.Minute),
		"done":   jobWithAge("done", model.JobStatusSucceeded, 2*time.Hour),
		"failed": jobWithAge("failed", model.JobStatusFailed, 2*time.Hour),
	}}
	sweeper := NewSweeper(jobs, time.Hour)

	if err := sweeper.ProcessTask(context.Background(), NewSweepTask()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	stale := jobs.jobs["stale"]
	if stale.Status != model.JobStatusFailed {
		t.Errorf("expected stale job failed, got %s", stale.Status)
	}
	if stale.Stage != model.StageDone {
		t.Errorf("expected stale job stage done, got %s", stale.Stage)
	}
	if stale.Error == nil {
		t.Error("expected stale job to carry an error message")
	}

	if jobs.jobs["fresh"].Status != model.JobStatusRunning {
		t.Errorf("fresh job must not be swept, got %s", jobs.jobs["fresh"].Status)
	}
	if jobs.jobs["done"].Status != model.JobStatusSucceeded {
		t.Errorf("succeeded job must not be touched, got %s", jobs.jobs["done"].Status)
	}
	if jobs.jobs["failed"].Error != nil {
		t.Error("already-failed job must not gain an error message")
	}
}

func TestSweeper_IgnoresVersionConflicts(t *testing.T) {
	jobs := &fakeSweepStore{
		jobs: map[string]*model.StemJobState{
			"stale": jobWithAge("stale", model.JobStatusRunning, 2*time.Hour),
		},
		updateErr: store.ErrVersionConflict,
	}
	sweeper := NewSweeper(jobs, time.Hour)

	// A conflict means an advance call touched the job first; the sweep
	// moves on instead of failing.
	if err := sweeper.ProcessTask(context.Background(), NewSweepTask()); err != nil {
		t.Fatalf("expected conflict swallowed, got %v", err)
	}
}
