package pipeline

import (
	"context"
	"errors"
	"log/slog"
)

// Worker runs queued packing jobs one at a time.
type Worker struct {
	packer *Packer
	log    *slog.Logger
}

func NewWorker(packer *Packer, log *slog.Logger) *Worker {
	return &Worker{packer: packer, log: log}
}

// Process runs the full packing pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "url", job.Request.SourceURL)
	job.SetStatus(StatusRunning, "starting")
	log.Info("pack started")

	res, err := w.packer.Pack(ctx, job.Request, job)
	if err != nil {
		phase := job.Snapshot().Phase
		if errors.Is(err, ErrInvalidSourceURL) {
			phase = "validating"
		}
		log.Error("pack failed", "phase", phase, "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, phase)
		return
	}
	job.Complete(res)
	log.Info("pack completed", "archive", res.Name, "bytes", len(res.Archive), "elapsed_ms", res.ElapsedMS)
}
