package pipeline

import (
	"context"

	"go.uber.org/zap"

	"geoshard-pipeline/internal/model"
	"geoshard-pipeline/internal/store"
)

// StatusUpdate is the typed input of the update stage.
type StatusUpdate struct {
	DatasetID string
	Status    model.JobStatus
	Result    *model.Summary
	Error     *model.FailureDescriptor
}

// StatusTracker owns the durable job record. Updates are idempotent upserts
// keyed by dataset identifier: last-write-wins on status and timestamp, a
// supplied result is set without ever clearing a prior one, and errors are
// set only when supplied. Concurrent updates to the same key need no locks
// because the upsert is commutative under last-write-wins.
type StatusTracker struct {
	jobs *store.JobStore
	log  *zap.Logger
}

func NewStatusTracker(jobs *store.JobStore, log *zap.Logger) *StatusTracker {
	return &StatusTracker{jobs: jobs, log: log}
}

// UpdateStatus applies the transition and returns the applied status plus a
// projected summary for caller convenience. A rejected write is a
// PersistenceError, fatal for the update stage.
func (t *StatusTracker) UpdateStatus(ctx context.Context, u StatusUpdate) (model.JobStatus, *model.Summary, error) {
	datasetID := u.DatasetID
	if datasetID == "" {
		datasetID = "unknown"
	}
	status := u.Status
	if status == "" {
		status = model.StatusCompleted
	}

	if err := t.jobs.UpdateStatus(datasetID, status, u.Result, u.Error); err != nil {
		return "", nil, stageErr("UpdateStatus", KindPersistence, err)
	}

	t.log.Info("job status updated",
		zap.String("datasetId", datasetID),
		zap.String("status", string(status)),
	)
	return status, u.Result, nil
}
