package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a 2D coordinate pair (x = longitude, y = latitude).
type Point struct {
	X float64
	Y float64
}

// BBox is an axis-aligned bounding box. It marshals to the GeoJSON-style
// array form [minX, minY, maxX, maxY].
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY})
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 4 {
		return fmt.Errorf("bbox must have 4 elements, got %d", len(arr))
	}
	b.MinX, b.MinY, b.MaxX, b.MaxY = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// Expand grows the box to include p.
func (b *BBox) Expand(p Point) {
	if p.X < b.MinX {
		b.MinX = p.X
	}
	if p.Y < b.MinY {
		b.MinY = p.Y
	}
	if p.X > b.MaxX {
		b.MaxX = p.X
	}
	if p.Y > b.MaxY {
		b.MaxY = p.Y
	}
}

// MergeBBox folds two optional boxes into one. A nil box is absence, not a
// zero box, and contributes nothing to the min/max fold.
func MergeBBox(a, b *BBox) *BBox {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &BBox{
		MinX: math.Min(a.MinX, b.MinX),
		MinY: math.Min(a.MinY, b.MinY),
		MaxX: math.Max(a.MaxX, b.MaxX),
		MaxY: math.Max(a.MaxY, b.MaxY),
	}
}

// ShoelaceArea returns the unsigned area of the polygon described by ring,
// via the shoelace formula: signed double-area = Σ (x_i·y_(i+1) − x_(i+1)·y_i)
// over cyclic indices, area = |signed double-area| / 2. Rings with fewer than
// three points have zero area.
func ShoelaceArea(ring []Point) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var area2 float64
	for i := 0; i < n; i++ {
		p := ring[i]
		q := ring[(i+1)%n]
		area2 += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(area2) / 2
}

// Accumulator gathers per-shard geometric statistics. Shards contribute raw
// coordinate sums, never pre-divided averages, so that the aggregate centroid
// stays exact regardless of shard size skew. The zero value is ready to use.
type Accumulator struct {
	PointCount     int
	PointSumX      float64
	PointSumY      float64
	PolygonCount   int
	PolygonAreaSum float64
	OtherCount     int

	bbox *BBox
}

// AddPoint records a Point feature: count, raw coordinate sum, bbox.
func (a *Accumulator) AddPoint(p Point) {
	a.PointCount++
	a.PointSumX += p.X
	a.PointSumY += p.Y
	a.expand(p)
}

// AddPolygon records a polygon outer ring: count, unsigned shoelace area,
// and bbox expansion over every ring vertex. Rings with fewer than three
// points are ignored.
func (a *Accumulator) AddPolygon(ring []Point) {
	if len(ring) < 3 {
		return
	}
	a.PolygonCount++
	a.PolygonAreaSum += ShoelaceArea(ring)
	for _, p := range ring {
		a.expand(p)
	}
}

// AddOther records a feature of any geometry type outside Point/Polygon.
// Other features never affect the bbox.
func (a *Accumulator) AddOther() {
	a.OtherCount++
}

// BBox returns the accumulated box, or nil if no geometry was seen.
func (a *Accumulator) BBox() *BBox {
	if a.bbox == nil {
		return nil
	}
	cp := *a.bbox
	return &cp
}

func (a *Accumulator) expand(p Point) {
	if a.bbox == nil {
		a.bbox = &BBox{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
		return
	}
	a.bbox.Expand(p)
}

// Centroid derives a centroid from summed coordinates and a total point
// count. Returns nil when count is zero.
func Centroid(sumX, sumY float64, count int) *Point {
	if count <= 0 {
		return nil
	}
	return &Point{X: sumX / float64(count), Y: sumY / float64(count)}
}
