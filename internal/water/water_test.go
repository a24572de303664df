package water

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gruppe-adler/meh-heightmap/internal/coords"
	"github.com/gruppe-adler/meh-heightmap/internal/fetch"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
)

const ppt = 4096

// square returns a counter clockwise ring, or a clockwise one when cw is set
func square(min, max float64, cw bool) orb.Ring {
	if cw {
		return orb.Ring{{min, min}, {min, max}, {max, max}, {max, min}, {min, min}}
	}
	return orb.Ring{{min, min}, {max, min}, {max, max}, {min, max}, {min, min}}
}

func rect(x0, y0, x1, y1 float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
}

func waterFeature(id int, class string, p orb.Polygon) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.ID = id
	f.Properties["class"] = class
	return f
}

func encode(t *testing.T, water []*geojson.Feature, ways []*geojson.Feature) []byte {
	t.Helper()

	layers := mvt.Layers{
		mvt.NewLayer(LayerWater, &geojson.FeatureCollection{Features: water}),
		mvt.NewLayer(LayerWaterway, &geojson.FeatureCollection{Features: ways}),
	}
	data, err := mvt.Marshal(layers)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// options lay out one tile so that output pixel = tile pixel / 64 on a 64px
// grid, with one output pixel being 1km
func options() Options {
	profile := Profiles["sine"]
	return Options{
		Mosaic: coords.Mosaic{
			Range:         coords.TileRange{Count: 1},
			PixelsPerTile: ppt,
			Size:          ppt,
			Scale:         64,
			OffsetX:       ppt / 2,
			OffsetY:       ppt / 2,
		},
		HalfSize:     32,
		Size:         64,
		UnitSize:     1,
		Riparian:     4000,
		Littoral:     4000,
		StreamWidth:  3000,
		Profile:      profile,
		IncludeOcean: true,
	}
}

func build(t *testing.T, opts Options, data []byte) Masks {
	t.Helper()

	m, err := Build(context.Background(), []fetch.Result{{Data: data}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestSlopeRamp(t *testing.T) {
	r := NewSlopeRamp(Profiles["sine"], 4)

	tests := []struct {
		d    float64
		want float64
	}{
		{0, 1},
		{2, 0.5},
		{4, 0},
		{10, 0},
	}
	for _, tt := range tests {
		if got := r.At(tt.d); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("At(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}

	prev := 1.0
	for d := 0.0; d <= 4; d += 0.05 {
		v := r.At(d)
		if v > prev+1e-9 {
			t.Fatalf("ramp rises at %v: %v > %v", d, v, prev)
		}
		prev = v
	}

	if v := (SlopeRamp{}).At(0); v != 0 {
		t.Errorf("zero width ramp = %v", v)
	}
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile("")
	if err != nil || p != Profiles[DefaultProfile] {
		t.Errorf("default profile = %v, %v", p, err)
	}
	if _, err := ParseProfile("quint"); err != nil {
		t.Error(err)
	}
	if _, err := ParseProfile("nope"); err == nil {
		t.Error("expected an error")
	}
}

func TestBuildFillAndHoles(t *testing.T) {
	lake := orb.Polygon{square(1024, 3072, false), square(1536, 2560, true)}
	m := build(t, options(), encode(t, []*geojson.Feature{waterFeature(1, "lake", lake)}, nil))

	tests := []struct {
		name string
		x, y int
		want float32
	}{
		{"outside", 5, 5, 1},
		{"water", 20, 32, 0},
		{"slope", 18, 32, 0.5},
		{"island", 32, 32, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Water.At(tt.x, tt.y); math.Abs(float64(got-tt.want)) > 1e-3 {
				t.Errorf("water(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}

	if m.WaterImage != nil {
		t.Error("debug images without Debug")
	}
}

func TestBuildOcean(t *testing.T) {
	ocean := orb.Polygon{square(1024, 3072, false)}
	data := encode(t, []*geojson.Feature{waterFeature(1, ClassOcean, ocean)}, nil)

	opts := options()
	if v := build(t, opts, data).Water.At(32, 32); v != 0 {
		t.Errorf("ocean included: %v, want 0", v)
	}

	opts.IncludeOcean = false
	if v := build(t, opts, data).Water.At(32, 32); v != 1 {
		t.Errorf("ocean excluded: %v, want 1", v)
	}
}

func TestBuildSharedEdge(t *testing.T) {
	left := orb.Polygon{rect(1024, 1024, 2048, 3072)}
	right := orb.Polygon{rect(2048, 1024, 3072, 3072)}
	data := encode(t, []*geojson.Feature{
		waterFeature(1, "lake", left),
		waterFeature(2, "lake", right),
	}, nil)

	m := build(t, options(), data)
	if v := m.Water.At(30, 32); v != 0 {
		t.Errorf("slope along shared edge: %v", v)
	}
	if v := m.Water.At(18, 32); math.Abs(float64(v)-0.5) > 1e-3 {
		t.Errorf("outer slope = %v, want 0.5", v)
	}
}

func TestEdgeIndex(t *testing.T) {
	a := feature{id: 1, polys: orb.MultiPolygon{{rect(1024, 1024, 2048, 3072)}}}
	b := feature{id: 2, polys: orb.MultiPolygon{{rect(2048, 1024, 3072, 3072)}}}
	inner := feature{id: 3, polys: orb.MultiPolygon{{rect(1200, 1200, 1300, 1300)}}}

	idx := newEdgeIndex(ppt, []feature{a, b, inner})

	tests := []struct {
		name string
		e    edge
		want bool
	}{
		{"outer", edge{a: orb.Point{1024, 1024}, b: orb.Point{2048, 1024}, id: 1}, false},
		{"shared", edge{a: orb.Point{2048, 1024}, b: orb.Point{2048, 3072}, id: 1}, true},
		{"shared reversed", edge{a: orb.Point{2048, 3072}, b: orb.Point{2048, 1024}, id: 2}, true},
		{"contained", edge{a: orb.Point{1200, 1200}, b: orb.Point{1300, 1200}, id: 3}, true},
		{"outside tile", edge{a: orb.Point{-100, 10}, b: orb.Point{-50, 10}, id: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := idx.skip(tt.e); got != tt.want {
				t.Errorf("skip = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildWaterway(t *testing.T) {
	river := geojson.NewFeature(orb.LineString{{0, 2048}, {4096, 2048}})
	data := encode(t, nil, []*geojson.Feature{river})

	opts := options()
	opts.Debug = true
	m := build(t, opts, data)

	if v := m.Waterway.At(32, 32); v > 0.5 {
		t.Errorf("waterway on the line = %v", v)
	}
	if v := m.Waterway.At(32, 10); math.Abs(float64(v)-1) > 1e-4 {
		t.Errorf("waterway away from the line = %v", v)
	}
	if m.WaterwayImage == nil || m.WaterwayImage.GrayAt(32, 10).Y != 255 {
		t.Error("missing waterway debug image")
	}
}

func TestBuildGzipped(t *testing.T) {
	lake := orb.Polygon{square(1024, 3072, false)}
	layers := mvt.Layers{mvt.NewLayer(LayerWater, &geojson.FeatureCollection{
		Features: []*geojson.Feature{waterFeature(1, "lake", lake)},
	})}
	data, err := mvt.MarshalGzipped(layers)
	if err != nil {
		t.Fatal(err)
	}

	if v := build(t, options(), data).Water.At(32, 32); v != 0 {
		t.Errorf("water = %v, want 0", v)
	}
}

func TestBuildFailedTiles(t *testing.T) {
	opts := options()
	opts.Mosaic.Range.Count = 2
	opts.Mosaic.Size = 2 * ppt

	var settled int
	opts.OnTile = func(int) { settled++ }

	results := []fetch.Result{
		{Err: errors.New("boom")},
		{Data: []byte("garbage")},
		{},
		{},
	}
	m, err := Build(context.Background(), results, opts)
	if err != nil {
		t.Fatal(err)
	}
	if settled != len(results) {
		t.Errorf("settled %d of %d", settled, len(results))
	}
	for i, v := range m.Water.Data {
		if v != 1 {
			t.Fatalf("water[%d] = %v, want 1", i, v)
		}
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lake := orb.Polygon{square(1024, 3072, false)}
	data := encode(t, []*geojson.Feature{waterFeature(1, "lake", lake)}, nil)
	if _, err := Build(ctx, []fetch.Result{{Data: data}}, options()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestChunks(t *testing.T) {
	line := []orb.Point{{0, 0}, {300, 0}, {600, 0}, {900, 0}}
	parts := chunks(line, 512)
	if len(parts) < 2 {
		t.Fatalf("got %d parts", len(parts))
	}
	for i := 1; i < len(parts); i++ {
		prev := parts[i-1]
		if prev[len(prev)-1] != parts[i][0] {
			t.Errorf("part %d does not continue part %d", i, i-1)
		}
	}
}
