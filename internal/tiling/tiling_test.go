package tiling

import (
	"math/rand"
	"testing"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
)

func randomGrid(size int) grid.Grid {
	r := rand.New(rand.NewSource(int64(size)))
	g := grid.New(size)
	for i := range g.Data {
		g.Data[i] = r.Float32() * 1000
	}
	return g
}

func TestDivisions(t *testing.T) {
	tests := []struct {
		resolution int
		want       int
	}{
		{1081, 1},
		{4096, 1},
		{8192, 1},
		{8193, 3},
		{12000, 3},
		{14336, 4},
		{16384, 4},
	}

	for _, tt := range tests {
		if got := Divisions(tt.resolution); got != tt.want {
			t.Errorf("Divisions(%d) = %d, want %d", tt.resolution, got, tt.want)
		}
	}
}

func TestSplitMergeRoundTrip(t *testing.T) {
	tests := []struct {
		size, divisions, padding int
	}{
		{size: 50, divisions: 1, padding: 5},
		{size: 57, divisions: 2, padding: 5},
		{size: 91, divisions: 3, padding: 7},
		{size: 103, divisions: 4, padding: 10},
		{size: 64, divisions: 4, padding: 0},
	}

	for _, tt := range tests {
		g := randomGrid(tt.size)

		tiles, err := Split(g, tt.divisions, tt.padding)
		if err != nil {
			t.Fatal(err)
		}
		if len(tiles) != tt.divisions*tt.divisions {
			t.Fatalf("got %d tiles", len(tiles))
		}

		merged, err := Merge(tiles, tt.size, tt.padding)
		if err != nil {
			t.Fatal(err)
		}
		for i := range g.Data {
			if merged.Data[i] != g.Data[i] {
				t.Fatalf("size %d divisions %d: cell %d differs", tt.size, tt.divisions, i)
			}
		}
	}
}

func TestSplitTilesOverlap(t *testing.T) {
	g := randomGrid(61)
	tiles, err := Split(g, 2, 5)
	if err != nil {
		t.Fatal(err)
	}

	l, _ := NewLayout(61, 2, 5)
	if l.TileSize != 36 || l.Step != 25 || l.Remainder != 1 {
		t.Fatalf("unexpected layout %+v", l)
	}

	// every tile is an exact window of the source
	for i, tile := range tiles {
		ox, oy := l.Origin(i)
		for y := 0; y < tile.Size; y++ {
			for x := 0; x < tile.Size; x++ {
				if tile.At(x, y) != g.At(ox+x, oy+y) {
					t.Fatalf("tile %d differs at %d, %d", i, x, y)
				}
			}
		}
	}
}

func TestSplitRejectsTinyGrids(t *testing.T) {
	if _, err := Split(grid.New(10), 4, 4); err == nil {
		t.Error("expected an error")
	}
	if _, err := Merge(make([]grid.Grid, 3), 10, 0); err == nil {
		t.Error("expected an error for a non square tile count")
	}
}

func TestBlendWithFeathering(t *testing.T) {
	base := grid.Filled(40, 0)
	overlay := grid.Filled(20, 10)

	out, err := BlendWithFeathering(base, overlay, 4, 2)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		x, y int
		want float32
	}{
		{x: 0, y: 0, want: 0},
		{x: 20, y: 20, want: 10},
		// overlay core starts at 10+4
		{x: 14, y: 20, want: 10},
		{x: 13, y: 20, want: 5},
		{x: 12, y: 20, want: 0},
		{x: 13, y: 13, want: 5},
		// core ends at 10+16, the feather fades out behind it
		{x: 26, y: 20, want: 10},
		{x: 27, y: 20, want: 5},
	}

	for _, tt := range tests {
		if got := out.At(tt.x, tt.y); got != tt.want {
			t.Errorf("At(%d, %d) = %f, want %f", tt.x, tt.y, got, tt.want)
		}
	}

	if _, err := BlendWithFeathering(base, overlay, 2, 4); err == nil {
		t.Error("expected an error for a feather wider than the padding")
	}
}

func TestScaleDown(t *testing.T) {
	g := grid.New(8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			g.Set(x, y, float32(x+y*8))
		}
	}

	out, err := ScaleDown(g, 4)
	if err != nil {
		t.Fatal(err)
	}
	if out.Size != 2 {
		t.Fatalf("size %d", out.Size)
	}

	// center 2x2 of the top left block: 9, 10, 17, 18
	if out.At(0, 0) != 13.5 {
		t.Errorf("At(0, 0) = %f, want 13.5", out.At(0, 0))
	}

	if _, err := ScaleDown(g, 3); err == nil {
		t.Error("expected an error")
	}
}
