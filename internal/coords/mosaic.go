package coords

import "math"

// Mosaic describes how the tiles of a range are laid out in one square source
// buffer and how that buffer relates to the output grid
type Mosaic struct {
	Range         TileRange
	PixelsPerTile int

	// Size of the mosaic buffer in pixels
	Size int

	// Scale is the number of mosaic pixels per output pixel
	Scale float64

	// OffsetX and OffsetY locate the output center inside the mosaic
	OffsetX float64
	OffsetY float64
}

// MosaicOptions configure NewMosaic
type MosaicOptions struct {
	// OutputPixels is the number of output pixels covered by the extent
	OutputPixels int
	// MaxZoom limits the zoom level of the tile source
	MaxZoom uint32
	// ZoomBias is added to the calculated zoom before limiting it
	ZoomBias int
	// Angle rotates the sampled footprint, degrees clockwise
	Angle float64
	// Correction is the vertex vs cell grid correction of the target format
	Correction int
}

// NewMosaic lays out the tiles needed to sample e at the resolution of opts
func NewMosaic(e Extent, opts MosaicOptions) Mosaic {
	side := e.Side()
	outputPixels := float64(opts.OutputPixels)

	zoom := int(Zoom(outputPixels, side, 32)) + opts.ZoomBias
	if zoom < 0 {
		zoom = 0
	}
	if zoom > int(opts.MaxZoom) {
		zoom = int(opts.MaxZoom)
	}

	r := NewTileRange(e.Rotate(opts.Angle), uint32(zoom))
	ppt := int(e.PixelsPerTile)
	factor := math.Exp2(float64(zoom))
	correction := float64(opts.Correction) / 2

	return Mosaic{
		Range:         r,
		PixelsPerTile: ppt,
		Size:          r.Count * ppt,
		Scale:         side * factor / outputPixels,
		OffsetX:       e.Center.X*factor - float64(r.X0)*e.PixelsPerTile - correction,
		OffsetY:       e.Center.Y*factor - float64(r.Y0)*e.PixelsPerTile - correction,
	}
}

// TileOrigin returns the top left mosaic pixel of the tile at index i of
// Range.Tiles()
func (m Mosaic) TileOrigin(i int) (x, y int) {
	return (i % m.Range.Count) * m.PixelsPerTile, (i / m.Range.Count) * m.PixelsPerTile
}
