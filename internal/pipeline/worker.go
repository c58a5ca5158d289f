package pipeline

import (
	"context"
	"log/slog"
)

// Worker runs queued jobs through the orchestrator.
type Worker struct {
	orch *Orchestrator
	log  *slog.Logger
}

func NewWorker(orch *Orchestrator, log *slog.Logger) *Worker {
	return &Worker{orch: orch, log: log}
}

// Process ingests the job's spooled file and records the outcome on the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	log.Info("job started")
	job.SetStatus(StatusProcessing, string(StateStarted))

	res := w.orch.processFile(ctx, job.Path, func(s State) {
		job.SetStatus(StatusProcessing, string(s))
	})
	job.Finish(res)

	if res.Err != nil {
		log.Warn("job failed", "doc_id", res.DocID, "error", res.Err)
		return
	}
	log.Info("job completed", "doc_id", res.DocID, "chunks", res.Chunks)
}
