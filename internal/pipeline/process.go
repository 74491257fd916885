package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"geoshard-pipeline/internal/geometry"
	"geoshard-pipeline/internal/metrics"
	"geoshard-pipeline/internal/model"
	"geoshard-pipeline/internal/storage"
)

// ShardProcessor computes partial geometric statistics for the subset of
// features assigned to one work item. Every shard owns a private
// accumulator; there is no shared mutable state across shards.
type ShardProcessor struct {
	objects     storage.ObjectStore
	sink        metrics.Sink
	maxFileSize int64
	log         *zap.Logger
}

func NewShardProcessor(objects storage.ObjectStore, sink metrics.Sink, maxFileSize int64, log *zap.Logger) *ShardProcessor {
	return &ShardProcessor{
		objects:     objects,
		sink:        sink,
		maxFileSize: maxFileSize,
		log:         log,
	}
}

// Process reads the referenced source object and produces the shard's
// partial result. Read or parse faults never abort the dataset: the shard
// reports a zero-valued error result so the aggregator can merge it safely.
func (p *ShardProcessor) Process(ctx context.Context, item model.WorkItem) model.PartialResult {
	fileType := FileTypeOf(item.SourceRef)
	p.sink.Count(metrics.FilesProcessed, 1, metrics.Tags{
		"fileType": string(fileType),
		"shard":    strconv.Itoa(item.ShardIndex),
	})

	result, err := p.process(ctx, item, fileType)
	if err != nil {
		p.sink.Count(metrics.ProcessingErrors, 1, nil)
		p.log.Warn("shard processing failed",
			zap.String("datasetId", item.DatasetID),
			zap.Int("shard", item.ShardIndex),
			zap.Error(err),
		)
		return model.PartialResult{
			DatasetID:   item.DatasetID,
			ShardIndex:  item.ShardIndex,
			Status:      model.ShardError,
			ErrorDetail: err.Error(),
		}
	}

	result.DatasetID = item.DatasetID
	result.ShardIndex = item.ShardIndex
	result.Status = model.ShardOK
	return result
}

func (p *ShardProcessor) process(ctx context.Context, item model.WorkItem, fileType model.FileType) (model.PartialResult, error) {
	body, err := p.read(ctx, item.SourceRef)
	if err != nil {
		return model.PartialResult{}, err
	}
	if fileType == model.FileTypeGeoTIFF {
		return processRaster(body)
	}
	return processGeoJSON(body, item.ShardIndex, item.ShardCount)
}

func (p *ShardProcessor) read(ctx context.Context, key string) ([]byte, error) {
	size, err := p.objects.Size(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("source object unreadable: %w", err)
	}
	if size > p.maxFileSize {
		return nil, fmt.Errorf("source object exceeds size cap: %d > %d bytes", size, p.maxFileSize)
	}
	body, err := p.objects.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("source object unreadable: %w", err)
	}
	return body, nil
}

// featureCollection is the subset of GeoJSON this pipeline interprets.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry *geomNode `json:"geometry"`
}

type geomNode struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// processGeoJSON scans the feature collection, keeping feature i iff
// i mod shardCount == shardIndex. Across the full work-item set this
// assignment processes every feature exactly once.
func processGeoJSON(body []byte, shardIndex, shardCount int) (model.PartialResult, error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return model.PartialResult{}, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}
	if shardCount < 1 {
		shardCount = 1
	}

	var acc geometry.Accumulator
	for i, feat := range fc.Features {
		if i%shardCount != shardIndex {
			continue
		}
		accumulateFeature(&acc, feat)
	}

	return model.PartialResult{
		PointCount:     acc.PointCount,
		PointSum:       model.Coordinate{acc.PointSumX, acc.PointSumY},
		PolygonCount:   acc.PolygonCount,
		PolygonAreaSum: acc.PolygonAreaSum,
		OtherCount:     acc.OtherCount,
		BBox:           acc.BBox(),
	}, nil
}

func accumulateFeature(acc *geometry.Accumulator, feat feature) {
	geom := feat.Geometry
	if geom == nil {
		acc.AddOther()
		return
	}
	switch geom.Type {
	case "Point":
		var coords []float64
		if json.Unmarshal(geom.Coordinates, &coords) == nil && len(coords) >= 2 {
			acc.AddPoint(geometry.Point{X: coords[0], Y: coords[1]})
			return
		}
		acc.AddOther()
	case "Polygon":
		var rings [][][]float64
		if json.Unmarshal(geom.Coordinates, &rings) == nil && len(rings) > 0 {
			// Malformed outer rings are skipped without touching any
			// counter, matching the per-feature contract: only rings
			// with at least three valid pairs count as polygons.
			acc.AddPolygon(ringPoints(rings[0]))
			return
		}
		acc.AddOther()
	default:
		acc.AddOther()
	}
}

func ringPoints(outer [][]float64) []geometry.Point {
	pts := make([]geometry.Point, 0, len(outer))
	for _, pair := range outer {
		if len(pair) >= 2 {
			pts = append(pts, geometry.Point{X: pair[0], Y: pair[1]})
		}
	}
	return pts
}

// tiffMagic headers: little-endian "II*\0" and big-endian "MM\0*".
var (
	tiffMagicLE = []byte{0x49, 0x49, 0x2A, 0x00}
	tiffMagicBE = []byte{0x4D, 0x4D, 0x00, 0x2A}
)

// processRaster is the documented minimal raster contract, not production
// accuracy: it validates the TIFF header and reports a single
// polygon-equivalent area representing full-extent coverage, flagged as
// raster-derived, with zero point and other counts. A real raster parser
// can replace this while keeping the same partial-result schema.
func processRaster(body []byte) (model.PartialResult, error) {
	if len(body) < 4 || (!bytes.Equal(body[:4], tiffMagicLE) && !bytes.Equal(body[:4], tiffMagicBE)) {
		return model.PartialResult{}, fmt.Errorf("source object is not a valid TIFF: bad magic header")
	}
	return model.PartialResult{
		PolygonCount:   1,
		PolygonAreaSum: 1.0,
		BBox:           &geometry.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
		RasterDerived:  true,
	}, nil
}
