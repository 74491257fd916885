package pipeline

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"geoshard-pipeline/internal/model"
	"geoshard-pipeline/internal/store"
)

// hardShardCap bounds fan-out regardless of configuration so the model stays
// free of worker-pool management.
const hardShardCap = 3

var datasetIDPattern = regexp.MustCompile(`ingest/([^/]+)/`)

// Partitioner turns one newly stored input object into a fixed, ordered set
// of work items, gating on the size cap and recording the PROCESSING
// transition.
type Partitioner struct {
	maxFileSize int64
	maxShards   int
	jobs        *store.JobStore
	log         *zap.Logger
}

func NewPartitioner(maxFileSize int64, maxShards int, jobs *store.JobStore, log *zap.Logger) *Partitioner {
	return &Partitioner{
		maxFileSize: maxFileSize,
		maxShards:   maxShards,
		jobs:        jobs,
		log:         log,
	}
}

// Partition validates size, derives the dataset identifier from the object
// key, and issues min(configuredMax, 3) work items, each referencing the
// same source object. The size gate is a hard input-validation failure, not
// a retryable condition.
func (p *Partitioner) Partition(ctx context.Context, objectKey string, size int64) ([]model.WorkItem, error) {
	if size > p.maxFileSize {
		return nil, stageErrf("Partition", KindInvalidInput,
			"file too large: %d > %d bytes", size, p.maxFileSize)
	}

	datasetID, err := DeriveDatasetID(objectKey)
	if err != nil {
		return nil, stageErr("Partition", KindInvalidInput, err)
	}

	shardCount := p.maxShards
	if shardCount > hardShardCap {
		shardCount = hardShardCap
	}
	if shardCount < 1 {
		shardCount = 1
	}

	items := make([]model.WorkItem, 0, shardCount)
	for i := 0; i < shardCount; i++ {
		items = append(items, model.WorkItem{
			DatasetID:  datasetID,
			ShardIndex: i,
			ShardCount: shardCount,
			SourceRef:  objectKey,
		})
	}

	// Record PROCESSING for the dataset. The upsert is idempotent; a
	// store failure here does not invalidate the work plan.
	rec := model.JobRecord{
		DatasetID: datasetID,
		Status:    model.StatusProcessing,
		FileName:  path.Base(objectKey),
		FileType:  FileTypeOf(objectKey),
	}
	if err := p.jobs.PutJob(rec); err != nil {
		p.log.Warn("failed to record PROCESSING status",
			zap.String("datasetId", datasetID), zap.Error(err))
	}

	p.log.Info("partitioned input object",
		zap.String("datasetId", datasetID),
		zap.String("objectKey", objectKey),
		zap.Int("shards", shardCount),
		zap.Int64("size", size),
	)
	return items, nil
}

// DeriveDatasetID extracts the dataset identifier from an object key of the
// form ingest/{datasetId}/{fileName}.
func DeriveDatasetID(objectKey string) (string, error) {
	m := datasetIDPattern.FindStringSubmatch(objectKey)
	if m == nil {
		return "", fmt.Errorf("object key %q does not match ingest/{datasetId}/...", objectKey)
	}
	return m[1], nil
}

// FileTypeOf determines the feature-file kind from the source reference
// suffix. Anything that is not a recognized raster extension is treated as
// GeoJSON.
func FileTypeOf(objectKey string) model.FileType {
	lower := strings.ToLower(objectKey)
	if strings.HasSuffix(lower, ".tif") || strings.HasSuffix(lower, ".tiff") || strings.HasSuffix(lower, ".geotiff") {
		return model.FileTypeGeoTIFF
	}
	return model.FileTypeGeoJSON
}
