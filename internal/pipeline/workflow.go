package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geoshard-pipeline/internal/metrics"
	"geoshard-pipeline/internal/model"
	"geoshard-pipeline/internal/notify"
	"geoshard-pipeline/internal/storage"
	"geoshard-pipeline/internal/store"
)

// Workflow drives the state machine
//
//	Partition → ProcessShards(parallel) → Aggregate → UpdateStatus →
//	FormatMessage → Deliver
//
// with any stage failure branching to FormatFailureMessage → DeliverFailure.
// Each stage stays independently invocable on its component; the workflow
// only sequences them and provides the barrier in front of Aggregate.
type Workflow struct {
	partitioner *Partitioner
	processor   *ShardProcessor
	aggregator  *Aggregator
	tracker     *StatusTracker
	notifier    notify.Notifier
	jobs        *store.JobStore
	log         *zap.Logger
}

// Deps bundles the explicitly constructed collaborator handles for one
// workflow. Their lifetime is the pipeline invocation; nothing here is
// process-global.
type Deps struct {
	Input       storage.ObjectStore
	Output      storage.ObjectStore
	Jobs        *store.JobStore
	Sink        metrics.Sink
	Notifier    notify.Notifier
	MaxFileSize int64
	MaxShards   int
	Log         *zap.Logger
}

func NewWorkflow(d Deps) *Workflow {
	tracker := NewStatusTracker(d.Jobs, d.Log)
	return &Workflow{
		partitioner: NewPartitioner(d.MaxFileSize, d.MaxShards, d.Jobs, d.Log),
		processor:   NewShardProcessor(d.Input, d.Sink, d.MaxFileSize, d.Log),
		aggregator:  NewAggregator(d.Output, d.Sink, tracker, d.Log),
		tracker:     tracker,
		notifier:    d.Notifier,
		jobs:        d.Jobs,
		log:         d.Log,
	}
}

// Run executes the full pipeline for one stored input object. It returns the
// merged summary on the success path. Stage failures are routed to the
// failure branch (terminal FAILED status plus a rendered failure report) and
// returned to the caller.
func (w *Workflow) Run(ctx context.Context, objectKey string, size int64) (*model.Summary, error) {
	execID := uuid.New().String()
	log := w.log.With(
		zap.String("execution", execID),
		zap.String("objectKey", objectKey),
	)
	log.Info("workflow started", zap.Int64("size", size))

	datasetID, _ := DeriveDatasetID(objectKey)

	items, err := w.partitioner.Partition(ctx, objectKey, size)
	if err != nil {
		w.fail(ctx, log, datasetID, err)
		return nil, err
	}
	datasetID = items[0].DatasetID

	// Shard fan-out. Each shard owns its own accumulator and result slot;
	// the WaitGroup is the barrier the aggregator relies on.
	results := make([]model.PartialResult, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item model.WorkItem) {
			defer wg.Done()
			results[i] = w.processor.Process(ctx, item)
		}(i, item)
	}
	wg.Wait()

	outcome, err := w.aggregator.Aggregate(ctx, len(items), results)
	if err != nil {
		w.fail(ctx, log, datasetID, err)
		return nil, err
	}

	status := model.StatusCompleted
	if !outcome.Summary.OK {
		status = model.StatusFailed
	}
	applied, summary, err := w.tracker.UpdateStatus(ctx, StatusUpdate{
		DatasetID: outcome.Summary.DatasetID,
		Status:    status,
		Result:    &outcome.Summary,
	})
	if err != nil {
		w.fail(ctx, log, datasetID, err)
		return nil, err
	}

	var failure *model.FailureDescriptor
	if applied == model.StatusFailed {
		failure = &model.FailureDescriptor{
			DatasetID: outcome.Summary.DatasetID,
			Kind:      string(KindReadFailure),
			Cause:     shardFailureCause(results),
		}
	}
	notification := FormatNotification(time.Now().UTC(), applied, summary, failure)
	if err := w.notifier.Deliver(ctx, notification); err != nil {
		// Delivery is out-of-band; its failure never fails the workflow.
		log.Warn("notification delivery failed", zap.Error(err))
	}

	log.Info("workflow finished",
		zap.String("datasetId", outcome.Summary.DatasetID),
		zap.String("status", string(applied)),
	)
	return summary, nil
}

// fail is the short-circuit branch: record the terminal FAILED status and
// the failure descriptor, then deliver the rendered failure report. The
// original error kind and cause text are preserved verbatim.
func (w *Workflow) fail(ctx context.Context, log *zap.Logger, datasetID string, cause error) {
	if datasetID == "" {
		datasetID = "unknown"
	}
	desc := &model.FailureDescriptor{
		DatasetID: datasetID,
		Kind:      string(KindOf(cause)),
		Cause:     CauseOf(cause),
	}

	if _, _, err := w.tracker.UpdateStatus(ctx, StatusUpdate{
		DatasetID: datasetID,
		Status:    model.StatusFailed,
		Error:     desc,
	}); err != nil {
		log.Warn("failed to record FAILED status", zap.Error(err))
	}
	if err := w.jobs.SaveJobError(desc.DatasetID, desc.Kind, desc.Cause); err != nil {
		log.Warn("failed to record job error", zap.Error(err))
	}

	notification := FormatNotification(time.Now().UTC(), model.StatusFailed, nil, desc)
	if err := w.notifier.Deliver(ctx, notification); err != nil {
		log.Warn("failure notification delivery failed", zap.Error(err))
	}

	log.Error("workflow failed",
		zap.String("datasetId", datasetID),
		zap.String("stage", StageOf(cause)),
		zap.String("kind", desc.Kind),
		zap.Error(cause),
	)
}

func shardFailureCause(results []model.PartialResult) string {
	for _, r := range results {
		if r.Status != model.ShardOK && r.ErrorDetail != "" {
			return r.ErrorDetail
		}
	}
	return "one or more shards reported errors"
}
