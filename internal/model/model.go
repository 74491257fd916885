package model

import (
	"time"

	"geoshard-pipeline/internal/geometry"
)

// Coordinate is an (x, y) pair serialized as a two-element array.
type Coordinate [2]float64

// FileType identifies the feature-file kind derived from a source reference.
type FileType string

const (
	FileTypeGeoJSON FileType = "geojson"
	FileTypeGeoTIFF FileType = "geotiff"
)

// ShardStatus is the per-shard processing outcome.
type ShardStatus string

const (
	ShardOK    ShardStatus = "ok"
	ShardError ShardStatus = "error"
)

// JobStatus is the lifecycle state of a job record.
// PENDING → PROCESSING → {COMPLETED, FAILED}.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// WorkItem is one shard descriptor. Immutable once created by the
// partitioner; consumed exactly once by a shard processor invocation. All
// work items for a dataset reference the same source object.
type WorkItem struct {
	DatasetID  string `json:"datasetId"`
	ShardIndex int    `json:"shardIndex"`
	ShardCount int    `json:"shardCount"`
	SourceRef  string `json:"sourceRef"`
}

// PartialResult is the per-shard statistics record consumed by the
// aggregator. Error shards carry zero-valued counts, never partial
// accumulation, so they always merge safely.
type PartialResult struct {
	DatasetID      string         `json:"datasetId"`
	ShardIndex     int            `json:"shardIndex"`
	Status         ShardStatus    `json:"status"`
	PointCount     int            `json:"pointCount"`
	PointSum       Coordinate     `json:"pointSum"`
	PolygonCount   int            `json:"polygonCount"`
	PolygonAreaSum float64        `json:"polygonAreaSum"`
	OtherCount     int            `json:"otherCount"`
	BBox           *geometry.BBox `json:"bbox,omitempty"`
	RasterDerived  bool           `json:"rasterDerived,omitempty"`
	ErrorDetail    string         `json:"errorDetail,omitempty"`
}

// TileSummary is the per-shard projection embedded in a Summary.
type TileSummary struct {
	Tile           int         `json:"tile"`
	Status         ShardStatus `json:"status"`
	PointCount     int         `json:"pointCount"`
	PolygonCount   int         `json:"polygonCount"`
	PolygonAreaSum float64     `json:"polygonAreaSum"`
	OtherCount     int         `json:"otherCount"`
}

// Summary is the merged result for one dataset, persisted as the manifest
// document. OK is true iff every tile's status is ok. PointCentroid is
// present iff PointCount > 0 and is computed from summed coordinates, not
// from per-shard averages.
type Summary struct {
	DatasetID     string         `json:"datasetId"`
	OK            bool           `json:"ok"`
	Tiles         []TileSummary  `json:"tiles"`
	BBox          *geometry.BBox `json:"bbox"`
	PointCount    int            `json:"pointCount"`
	PointCentroid *Coordinate    `json:"pointCentroid"`
	PolygonCount  int            `json:"polygonCount"`
	PolygonArea   float64        `json:"polygonArea"`
	OtherCount    int            `json:"otherCount"`
}

// FailureDescriptor captures a stage-level failure for status records and
// failure notifications.
type FailureDescriptor struct {
	DatasetID string `json:"datasetId"`
	Kind      string `json:"kind"`
	Cause     string `json:"cause"`
}

// JobRecord is the durable job state keyed by dataset identifier. It is
// owned by the status tracker and mutated only through idempotent upserts.
type JobRecord struct {
	DatasetID   string             `json:"datasetId"`
	Status      JobStatus          `json:"status"`
	FileName    string             `json:"fileName,omitempty"`
	FileType    FileType           `json:"fileType,omitempty"`
	ManifestKey string             `json:"manifestKey,omitempty"`
	Result      *Summary           `json:"result,omitempty"`
	Error       *FailureDescriptor `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// JobListEntry is the projection returned by the jobs listing endpoint.
type JobListEntry struct {
	DatasetID string    `json:"datasetId"`
	Status    JobStatus `json:"status"`
	FileName  string    `json:"fileName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is a rendered outcome message ready for delivery.
type Notification struct {
	Subject   string             `json:"subject"`
	Message   string             `json:"message"`
	DatasetID string             `json:"datasetId"`
	Summary   *Summary           `json:"summary,omitempty"`
	Error     *FailureDescriptor `json:"error,omitempty"`
}
