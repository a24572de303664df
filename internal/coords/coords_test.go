package coords

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestPixelRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		lng, lat float64
	}{
		{"central park", -73.9653, 40.7828},
		{"origin", 0, 0},
		{"south", 151.2, -33.86},
		{"near antimeridian", 179.9, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, ppt := range []float64{256, 512, 4096} {
				x := Lng2Pixel(tt.lng, ppt)
				y := Lat2Pixel(tt.lat, ppt)

				if got := Pixel2Lng(x, ppt); math.Abs(got-tt.lng) > 1e-9 {
					t.Errorf("ppt %v: lng %v, want %v", ppt, got, tt.lng)
				}
				if got := Pixel2Lat(y, ppt); math.Abs(got-tt.lat) > 1e-9 {
					t.Errorf("ppt %v: lat %v, want %v", ppt, got, tt.lat)
				}
			}
		})
	}
}

func TestWorldBounds(t *testing.T) {
	if y := Lat2Pixel(MaxLatitude, 512); math.Abs(y) > 1e-6 {
		t.Errorf("north edge = %v, want 0", y)
	}
	if y := Lat2Pixel(-MaxLatitude, 512); math.Abs(y-512) > 1e-6 {
		t.Errorf("south edge = %v, want 512", y)
	}
	if y := Lat2Pixel(0, 512); math.Abs(y-256) > 1e-6 {
		t.Errorf("equator = %v, want 256", y)
	}
	if x := Lng2Pixel(-180, 512); x != 0 {
		t.Errorf("west edge = %v, want 0", x)
	}
}

func TestLatLng2WorldRejectsInvalidTileSize(t *testing.T) {
	if _, err := LatLng2World(0, LatLng{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := World2LatLng(-1, WorldXY{}); err == nil {
		t.Fatal("expected error")
	}
}

func distance(a, b WorldXY) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestExtentIsSquareForAllAngles(t *testing.T) {
	e := GetExtent(-73.9653, 40.7828, 17.28, 0, 512)

	for angle := -180.0; angle <= 180; angle += 7.5 {
		r := e.Rotate(angle)
		corners := r.Corners()
		d0 := distance(corners[0], r.Center)
		for _, c := range corners[1:] {
			if d := distance(c, r.Center); math.Abs(d-d0) > 1e-9 {
				t.Fatalf("angle %v: corner distance %v, want %v", angle, d, d0)
			}
		}
		for i := range corners {
			edge := distance(corners[i], corners[(i+1)%4])
			if math.Abs(edge-e.Side()) > 1e-9 {
				t.Fatalf("angle %v: edge %v, want %v", angle, edge, e.Side())
			}
		}
	}
}

func TestExtentSize(t *testing.T) {
	e := GetExtent(0, 0, 40, 0, 512)

	// at the equator 40km are ~1/1000 of the earth's circumference
	want := 40.0 / 40075.0 * 512
	if math.Abs(e.Side()-want)/want > 0.01 {
		t.Fatalf("side = %v, want about %v", e.Side(), want)
	}
}

func TestExtentOffset(t *testing.T) {
	full := GetExtent(10, 50, 20, 0, 512)
	play := GetExtent(10, 50, 20, 0.375, 512)
	clamped := GetExtent(10, 50, 20, 2, 512)

	if math.Abs(play.Side()-full.Side()/4) > eps {
		t.Errorf("offset side = %v, want %v", play.Side(), full.Side()/4)
	}
	if clamped.Side() > eps {
		t.Errorf("offset above 0.5 must collapse the extent, side = %v", clamped.Side())
	}
	if play.Center != full.Center {
		t.Errorf("offset moved the center")
	}
}

func TestZoom(t *testing.T) {
	tests := []struct {
		required, side float64
		max            uint32
		want           uint32
	}{
		{1000, 1000, 14, 0},
		{1000, 600, 14, 1},
		{4096, 1, 14, 12},
		{1 << 20, 1, 14, 14},
		{1 << 20, 1, 7, 7},
		{10, 0, 14, 0},
	}
	for _, tt := range tests {
		if got := Zoom(tt.required, tt.side, tt.max); got != tt.want {
			t.Errorf("Zoom(%v, %v, %v) = %v, want %v", tt.required, tt.side, tt.max, got, tt.want)
		}
	}
}

func TestTileRangeWraps(t *testing.T) {
	r := TileRange{Zoom: 2, X0: 3, Y0: -1, Count: 2}

	tests := []struct {
		col, row int
		x, y     uint32
	}{
		{0, 0, 3, 0},
		{1, 0, 0, 0},
		{1, 1, 0, 0},
		{0, 1, 3, 0},
	}
	for _, tt := range tests {
		tile := r.Tile(tt.col, tt.row)
		if tile.X != tt.x || tile.Y != tt.y || tile.Z != 2 {
			t.Errorf("Tile(%d, %d) = %v, want %d/%d", tt.col, tt.row, tile, tt.x, tt.y)
		}
	}

	if n := len(r.Tiles()); n != 4 {
		t.Errorf("len(Tiles) = %d, want 4", n)
	}
}

func TestMosaicCentersExtent(t *testing.T) {
	e := GetExtent(-73.9653, 40.7828, 17.28*1.5, 0, 512)
	m := NewMosaic(e, MosaicOptions{OutputPixels: 1300, MaxZoom: MaxZoomTerrain})

	if m.Size != m.Range.Count*512 {
		t.Fatalf("size %d for %d tiles", m.Size, m.Range.Count)
	}

	// the extent must be inside the mosaic
	half := e.Side() * math.Exp2(float64(m.Range.Zoom)) / 2
	if m.OffsetX-half < 0 || m.OffsetY-half < 0 || m.OffsetX+half > float64(m.Size) || m.OffsetY+half > float64(m.Size) {
		t.Fatalf("extent outside of mosaic: offset %v,%v half %v size %d", m.OffsetX, m.OffsetY, half, m.Size)
	}

	// one output pixel must not be coarser than one source pixel
	if m.Scale < 1 && m.Range.Zoom < MaxZoomTerrain {
		t.Fatalf("scale %v below 1 at zoom %d", m.Scale, m.Range.Zoom)
	}
}

func TestMosaicRotatedRangeGrows(t *testing.T) {
	e := GetExtent(8, 47, 30, 0, 512)
	straight := NewMosaic(e, MosaicOptions{OutputPixels: 2000, MaxZoom: MaxZoomTerrain})
	rotated := NewMosaic(e, MosaicOptions{OutputPixels: 2000, MaxZoom: MaxZoomTerrain, Angle: 45})

	if rotated.Range.Zoom != straight.Range.Zoom {
		t.Fatalf("rotation changed zoom")
	}
	if rotated.Range.Count < straight.Range.Count {
		t.Fatalf("rotated range %d smaller than %d", rotated.Range.Count, straight.Range.Count)
	}
}
