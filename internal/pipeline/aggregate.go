package pipeline

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"geoshard-pipeline/internal/geometry"
	"geoshard-pipeline/internal/metrics"
	"geoshard-pipeline/internal/model"
	"geoshard-pipeline/internal/storage"
)

// AggregateOutcome reports what the aggregate stage did. Status propagation
// is attempted but is not a hard requirement of the call completing, so its
// result is surfaced here instead of being swallowed.
type AggregateOutcome struct {
	Summary     model.Summary
	ManifestKey string
	// StatusPropagated is true when the synchronous status update landed.
	StatusPropagated bool
	// StatusErr holds the synchronous update failure, if any. A best-effort
	// asynchronous retry runs after such a failure; its outcome is logged.
	StatusErr error
}

// Aggregator merges the full set of partial results for one dataset into a
// single summary, persists the manifest, and propagates the terminal status.
type Aggregator struct {
	objects storage.ObjectStore
	sink    metrics.Sink
	tracker *StatusTracker
	log     *zap.Logger
}

func NewAggregator(objects storage.ObjectStore, sink metrics.Sink, tracker *StatusTracker, log *zap.Logger) *Aggregator {
	return &Aggregator{
		objects: objects,
		sink:    sink,
		tracker: tracker,
		log:     log,
	}
}

// Aggregate requires exactly one partial result per issued work item; a
// short set is a contract violation, never silent under-aggregation. Input
// order is not significant. The merged summary is written to
// {datasetId}/manifest.json; manifest persistence is the stage's primary
// success criterion.
func (a *Aggregator) Aggregate(ctx context.Context, expected int, results []model.PartialResult) (*AggregateOutcome, error) {
	if len(results) < expected || len(results) == 0 {
		return nil, stageErrf("Aggregate", KindContractViolation,
			"expected %d partial results, got %d", expected, len(results))
	}

	summary := MergePartials(results)

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, stageErr("Aggregate", KindInternal, err)
	}
	manifestKey := summary.DatasetID + "/manifest.json"
	if err := a.objects.Put(ctx, manifestKey, data, "application/json"); err != nil {
		return nil, stageErr("Aggregate", KindPersistence, err)
	}
	a.sink.Count(metrics.JobsCompleted, 1, nil)

	status := model.StatusCompleted
	if !summary.OK {
		status = model.StatusFailed
	}

	outcome := &AggregateOutcome{Summary: summary, ManifestKey: manifestKey}
	_, _, err = a.tracker.UpdateStatus(ctx, StatusUpdate{
		DatasetID: summary.DatasetID,
		Status:    status,
		Result:    &summary,
	})
	if err == nil {
		outcome.StatusPropagated = true
	} else {
		// Manifest persistence already succeeded, so a status failure is
		// not fatal here; retry once in the background and record the
		// outcome observably.
		outcome.StatusErr = err
		a.log.Warn("synchronous status update failed, retrying asynchronously",
			zap.String("datasetId", summary.DatasetID), zap.Error(err))
		go func(datasetID string, status model.JobStatus, summary model.Summary) {
			if _, _, err := a.tracker.UpdateStatus(context.Background(), StatusUpdate{
				DatasetID: datasetID,
				Status:    status,
				Result:    &summary,
			}); err != nil {
				a.log.Warn("asynchronous status update failed",
					zap.String("datasetId", datasetID), zap.Error(err))
			}
		}(summary.DatasetID, status, summary)
	}

	a.log.Info("aggregated dataset",
		zap.String("datasetId", summary.DatasetID),
		zap.Bool("ok", summary.OK),
		zap.Int("tiles", len(summary.Tiles)),
		zap.String("manifestKey", manifestKey),
	)
	return outcome, nil
}

// MergePartials folds partial results into one summary. Counters and area
// sums are added, bboxes fold componentwise with absent boxes excluded, and
// the centroid comes from summed raw coordinates over the total point count,
// never from averaging per-shard centroids.
func MergePartials(results []model.PartialResult) model.Summary {
	var (
		bbox       *geometry.BBox
		sumX, sumY float64
		summary    model.Summary
	)
	summary.OK = true
	summary.DatasetID = firstDatasetID(results)
	summary.Tiles = make([]model.TileSummary, 0, len(results))

	for _, r := range results {
		summary.Tiles = append(summary.Tiles, model.TileSummary{
			Tile:           r.ShardIndex,
			Status:         r.Status,
			PointCount:     r.PointCount,
			PolygonCount:   r.PolygonCount,
			PolygonAreaSum: r.PolygonAreaSum,
			OtherCount:     r.OtherCount,
		})
		if r.Status != model.ShardOK {
			summary.OK = false
		}

		summary.PointCount += r.PointCount
		sumX += r.PointSum[0]
		sumY += r.PointSum[1]
		summary.PolygonCount += r.PolygonCount
		summary.PolygonArea += r.PolygonAreaSum
		summary.OtherCount += r.OtherCount
		bbox = geometry.MergeBBox(bbox, r.BBox)
	}

	sort.Slice(summary.Tiles, func(i, j int) bool {
		return summary.Tiles[i].Tile < summary.Tiles[j].Tile
	})

	summary.BBox = bbox
	if c := geometry.Centroid(sumX, sumY, summary.PointCount); c != nil {
		summary.PointCentroid = &model.Coordinate{c.X, c.Y}
	}
	return summary
}

// firstDatasetID returns the first non-empty identifier across results. All
// shards of one dataset carry the same identifier.
func firstDatasetID(results []model.PartialResult) string {
	for _, r := range results {
		if r.DatasetID != "" {
			return r.DatasetID
		}
	}
	return ""
}
