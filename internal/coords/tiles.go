package coords

import (
	"math"

	"github.com/paulmach/orb/maptile"
)

const (
	// MaxZoomTerrain is the highest zoom of terrain and vector tile sources
	MaxZoomTerrain = 14
	// MaxZoomOcean is the highest zoom of the ocean depth source
	MaxZoomOcean = 7
)

// Zoom calculates the zoom level at which side world pixels (zoom 0) cover at
// least requiredPixels pixels, limited to maxZoom
func Zoom(requiredPixels, side float64, maxZoom uint32) uint32 {
	if side <= 0 || requiredPixels <= side {
		return 0
	}

	zoom := math.Ceil(math.Log2(requiredPixels / side))

	return uint32(math.Min(zoom, float64(maxZoom)))
}

// TileRange is a square block of tiles at one zoom level
type TileRange struct {
	Zoom  uint32
	X0    int64
	Y0    int64
	Count int
}

// NewTileRange returns the tiles covering the axis aligned bounding box of
// the extent at given zoom. The range is always square.
func NewTileRange(e Extent, zoom uint32) TileRange {
	min, max := e.Bounds()
	factor := math.Exp2(float64(zoom)) / e.PixelsPerTile

	x0 := int64(math.Floor(min.X * factor))
	y0 := int64(math.Floor(min.Y * factor))
	x1 := int64(math.Floor(max.X * factor))
	y1 := int64(math.Floor(max.Y * factor))

	count := x1 - x0 + 1
	if y1-y0+1 > count {
		count = y1 - y0 + 1
	}

	return TileRange{Zoom: zoom, X0: x0, Y0: y0, Count: int(count)}
}

// Total returns the number of tiles in the range
func (r TileRange) Total() int {
	return r.Count * r.Count
}

// Tile returns the tile at column col and row row of the range. X wraps
// around the antimeridian, Y is clamped to the valid range.
func (r TileRange) Tile(col, row int) maptile.Tile {
	n := int64(1) << r.Zoom

	x := (r.X0 + int64(col)) % n
	if x < 0 {
		x += n
	}

	y := r.Y0 + int64(row)
	if y < 0 {
		y = 0
	}
	if y >= n {
		y = n - 1
	}

	return maptile.New(uint32(x), uint32(y), maptile.Zoom(r.Zoom))
}

// Tiles returns every tile of the range in row-major order
func (r TileRange) Tiles() []maptile.Tile {
	tiles := make([]maptile.Tile, 0, r.Total())
	for row := 0; row < r.Count; row++ {
		for col := 0; col < r.Count; col++ {
			tiles = append(tiles, r.Tile(col, row))
		}
	}
	return tiles
}
