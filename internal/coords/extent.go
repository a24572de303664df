package coords

import (
	"math"

	"github.com/tidwall/geodesic"
)

// Extent is a square sampling footprint in world pixel space
type Extent struct {
	TopLeft     WorldXY
	TopRight    WorldXY
	BottomLeft  WorldXY
	BottomRight WorldXY
	Center      WorldXY

	PixelsPerTile float64
}

// GetExtent calculates the square footprint of sizeKm around lng/lat in world
// pixel space. The side of the square is measured on the geodesic buffer of
// the center point, so the result is square regardless of the latitude. The
// footprint is shrunk by offset (clamped to [0, 0.5]) on each side.
func GetExtent(lng, lat, sizeKm, offset, pixelsPerTile float64) Extent {
	center := WorldXY{Lng2Pixel(lng, pixelsPerTile), Lat2Pixel(lat, pixelsPerTile)}
	offset = math.Min(math.Max(offset, 0), 0.5)

	radius := sizeKm * 1000 / 2
	var north, south, east, west, ignored float64
	geodesic.WGS84.Direct(lat, lng, 0, radius, &north, &ignored, nil)
	geodesic.WGS84.Direct(lat, lng, 180, radius, &south, &ignored, nil)
	geodesic.WGS84.Direct(lat, lng, 90, radius, &ignored, &east, nil)
	geodesic.WGS84.Direct(lat, lng, 270, radius, &ignored, &west, nil)

	width := Lng2Pixel(east, pixelsPerTile) - Lng2Pixel(west, pixelsPerTile)
	if east <= west {
		// crossing the antimeridian
		width += pixelsPerTile
	}
	height := Lat2Pixel(south, pixelsPerTile) - Lat2Pixel(north, pixelsPerTile)

	side := math.Sqrt(width*width+height*height) / math.Sqrt2
	half := side/2 - side*offset

	return Extent{
		TopLeft:       WorldXY{center.X - half, center.Y - half},
		TopRight:      WorldXY{center.X + half, center.Y - half},
		BottomLeft:    WorldXY{center.X - half, center.Y + half},
		BottomRight:   WorldXY{center.X + half, center.Y + half},
		Center:        center,
		PixelsPerTile: pixelsPerTile,
	}
}

// Side returns the length of the extent's edge
func (e Extent) Side() float64 {
	dx := e.TopRight.X - e.TopLeft.X
	dy := e.TopRight.Y - e.TopLeft.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Corners returns the corners in clockwise order starting top left
func (e Extent) Corners() [4]WorldXY {
	return [4]WorldXY{e.TopLeft, e.TopRight, e.BottomRight, e.BottomLeft}
}

// Bounds returns the axis aligned bounding box of the corners
func (e Extent) Bounds() (min, max WorldXY) {
	min = WorldXY{math.Inf(1), math.Inf(1)}
	max = WorldXY{math.Inf(-1), math.Inf(-1)}
	for _, c := range e.Corners() {
		min.X = math.Min(min.X, c.X)
		min.Y = math.Min(min.Y, c.Y)
		max.X = math.Max(max.X, c.X)
		max.Y = math.Max(max.Y, c.Y)
	}
	return min, max
}

// Rotate rotates the corners of the extent clockwise by angle degrees around its center
func (e Extent) Rotate(angle float64) Extent {
	if angle == 0 {
		return e
	}

	sin, cos := math.Sincos(deg2rad(angle))
	rotate := func(p WorldXY) WorldXY {
		dx := p.X - e.Center.X
		dy := p.Y - e.Center.Y
		return WorldXY{
			X: e.Center.X + dx*cos - dy*sin,
			Y: e.Center.Y + dx*sin + dy*cos,
		}
	}

	return Extent{
		TopLeft:       rotate(e.TopLeft),
		TopRight:      rotate(e.TopRight),
		BottomLeft:    rotate(e.BottomLeft),
		BottomRight:   rotate(e.BottomRight),
		Center:        e.Center,
		PixelsPerTile: e.PixelsPerTile,
	}
}
