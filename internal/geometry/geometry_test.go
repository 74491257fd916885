package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShoelaceArea(t *testing.T) {
	triangle := []Point{{0, 0}, {2, 0}, {0, 2}}

	tests := []struct {
		name string
		ring []Point
		want float64
	}{
		{name: "triangle", ring: triangle, want: 2.0},
		{name: "closed triangle with repeated last point", ring: []Point{{0, 0}, {2, 0}, {0, 2}, {0, 0}}, want: 2.0},
		{name: "unit square", ring: []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, want: 1.0},
		{name: "degenerate two points", ring: []Point{{0, 0}, {1, 1}}, want: 0},
		{name: "empty ring", ring: nil, want: 0},
		{name: "collinear points", ring: []Point{{0, 0}, {1, 1}, {2, 2}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ShoelaceArea(tt.ring), 1e-12)
		})
	}
}

func TestShoelaceArea_CyclicRotationInvariance(t *testing.T) {
	ring := []Point{{0, 0}, {4, 0}, {4, 3}, {1, 5}}
	want := ShoelaceArea(ring)
	for shift := 1; shift < len(ring); shift++ {
		rotated := append(append([]Point{}, ring[shift:]...), ring[:shift]...)
		assert.InDelta(t, want, ShoelaceArea(rotated), 1e-12, "rotation by %d", shift)
	}
}

func TestShoelaceArea_ReversalInvariance(t *testing.T) {
	ring := []Point{{0, 0}, {4, 0}, {4, 3}, {1, 5}}
	reversed := make([]Point, len(ring))
	for i, p := range ring {
		reversed[len(ring)-1-i] = p
	}
	// The signed double-area flips sign under reversal; the reported
	// unsigned area must not.
	assert.InDelta(t, ShoelaceArea(ring), ShoelaceArea(reversed), 1e-12)
}

func TestMergeBBox(t *testing.T) {
	a := &BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	b := &BBox{MinX: 2, MinY: 2, MaxX: 3, MaxY: 3}

	tests := []struct {
		name string
		a, b *BBox
		want *BBox
	}{
		{name: "disjoint boxes", a: a, b: b, want: &BBox{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}},
		{name: "absent left", a: nil, b: b, want: b},
		{name: "absent right", a: a, b: nil, want: a},
		{name: "both absent", a: nil, b: nil, want: nil},
		{
			name: "overlapping boxes",
			a:    &BBox{MinX: -1, MinY: 0, MaxX: 2, MaxY: 2},
			b:    &BBox{MinX: 0, MinY: -3, MaxX: 1, MaxY: 5},
			want: &BBox{MinX: -1, MinY: -3, MaxX: 2, MaxY: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeBBox(tt.a, tt.b))
		})
	}
}

func TestBBox_JSONRoundTrip(t *testing.T) {
	box := BBox{MinX: -1.5, MinY: 2, MaxX: 3, MaxY: 4.25}
	data, err := json.Marshal(box)
	require.NoError(t, err)
	assert.JSONEq(t, `[-1.5, 2, 3, 4.25]`, string(data))

	var back BBox
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, box, back)
}

func TestBBox_UnmarshalRejectsWrongLength(t *testing.T) {
	var box BBox
	assert.Error(t, json.Unmarshal([]byte(`[1, 2, 3]`), &box))
}

func TestAccumulator(t *testing.T) {
	var acc Accumulator

	assert.Nil(t, acc.BBox(), "no geometry seen yet")

	acc.AddPoint(Point{1, 1})
	acc.AddPoint(Point{3, 5})
	acc.AddPolygon([]Point{{0, 0}, {2, 0}, {0, 2}})
	acc.AddOther()
	acc.AddOther()

	assert.Equal(t, 2, acc.PointCount)
	assert.InDelta(t, 4.0, acc.PointSumX, 1e-12)
	assert.InDelta(t, 6.0, acc.PointSumY, 1e-12)
	assert.Equal(t, 1, acc.PolygonCount)
	assert.InDelta(t, 2.0, acc.PolygonAreaSum, 1e-12)
	assert.Equal(t, 2, acc.OtherCount)
	assert.Equal(t, &BBox{MinX: 0, MinY: 0, MaxX: 3, MaxY: 5}, acc.BBox())
}

func TestAccumulator_ShortRingIgnored(t *testing.T) {
	var acc Accumulator
	acc.AddPolygon([]Point{{0, 0}, {1, 1}})
	assert.Equal(t, 0, acc.PolygonCount)
	assert.Nil(t, acc.BBox())
}

func TestAccumulator_OtherDoesNotTouchBBox(t *testing.T) {
	var acc Accumulator
	acc.AddOther()
	assert.Equal(t, 1, acc.OtherCount)
	assert.Nil(t, acc.BBox())
}

func TestCentroid(t *testing.T) {
	// Raw sums over shards with point counts {2, 3} and sums
	// {(2,4), (9,12)}: the merge divides total sums by total count and
	// must not average per-shard centroids.
	c := Centroid(2+9, 4+12, 5)
	require.NotNil(t, c)
	assert.InDelta(t, 2.2, c.X, 1e-12)
	assert.InDelta(t, 3.2, c.Y, 1e-12)

	assert.Nil(t, Centroid(0, 0, 0))
}
