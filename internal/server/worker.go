package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/cogstim/internal/generate"
	"github.com/cwbudde/cogstim/internal/store"
)

// runJob executes a generation job in the background. The run record is
// saved to st (when not nil) whether the job completes, fails or is
// cancelled.
func runJob(ctx context.Context, jm *JobManager, st store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}
	if job, exists = jm.GetJob(jobID); exists {
		jm.broadcaster.Broadcast(eventFor(job))
	}

	slog.Info("Starting job", "job_id", jobID, "kind", job.Kind, "dir", job.Config.OutputDir)

	gen, err := generate.New(job.Config,
		generate.WithRunID(jobID),
		generate.WithProgress(func(p generate.Progress) {
			jm.UpdateJob(jobID, func(j *Job) { j.Progress = p })
			if j, ok := jm.GetJob(jobID); ok {
				jm.broadcaster.Broadcast(eventFor(j))
			}
		}),
	)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	var run *store.Run
	switch job.Kind {
	case store.KindANS, store.KindOneColour:
		run, err = gen.ANS(ctx)
	case store.KindMTS:
		run, err = gen.MTS(ctx)
	default:
		err = fmt.Errorf("unknown job kind: %s", job.Kind)
	}

	if run != nil {
		jm.UpdateJob(jobID, func(j *Job) { j.Stats = run.Stats })
		if st != nil {
			// the record outlives a cancelled job
			if serr := st.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
				slog.Error("Failed to save run", "job_id", jobID, "error", serr)
			}
		}
	}

	switch {
	case err == nil:
		markJobCompleted(jm, jobID)
	case errors.Is(err, context.Canceled):
		markJobCancelled(jm, jobID)
	default:
		markJobFailed(jm, jobID, err)
	}
	return err
}

func markJobCompleted(jm *JobManager, jobID string) {
	finish(jm, jobID, func(j *Job) { j.State = StateCompleted })
	slog.Info("Job completed", "job_id", jobID)
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	finish(jm, jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	finish(jm, jobID, func(j *Job) { j.State = StateCancelled })
	slog.Info("Job cancelled", "job_id", jobID)
}

// finish applies the terminal update, stamps the end time and broadcasts
// the final event.
func finish(jm *JobManager, jobID string, update func(*Job)) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		update(j)
		j.EndTime = &endTime
		if j.cancel != nil {
			j.cancel()
			j.cancel = nil
		}
	})
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(eventFor(job))
	}
}
