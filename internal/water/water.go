// Package water rasterizes the water and waterway layers of vector tiles
// into masks on the output grid. A mask value of 0 is water, 1 is land.
package water

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"

	"github.com/gruppe-adler/meh-heightmap/internal/coords"
	"github.com/gruppe-adler/meh-heightmap/internal/effects"
	"github.com/gruppe-adler/meh-heightmap/internal/fetch"
	"github.com/gruppe-adler/meh-heightmap/internal/grid"
	"github.com/gruppe-adler/meh-heightmap/internal/resample"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/project"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Layer names read from the vector tiles
const (
	LayerWater    = "water"
	LayerWaterway = "waterway"
)

// ClassOcean marks ocean polygons in the water layer
const ClassOcean = "ocean"

// fillMargin is how far, in tile pixels, polygons reach past the tile edge
// before they are clipped
const fillMargin = 2

// Options configure Build
type Options struct {
	// Mosaic lays out the vector tiles, Angle and HalfSize complete the
	// transform shared with the elevation resampling
	Mosaic   coords.Mosaic
	Angle    float64
	HalfSize float64

	// Size of the output masks in pixels
	Size int
	// UnitSize is the size of one output pixel in km
	UnitSize float64

	// Littoral, Riparian and StreamWidth are in meters
	Littoral    float64
	Riparian    float64
	StreamWidth float64
	Profile     [9]float64

	// IncludeOcean fills ocean polygons and gives them littoral slopes
	IncludeOcean bool
	// Debug renders the masks as images
	Debug bool

	Logger *zap.Logger
	// OnTile is called once per tile, including failed ones
	OnTile func(i int)
}

// Masks are the rasterized water layers
type Masks struct {
	Water    grid.Grid
	Waterway grid.Grid

	WaterImage    *image.Gray
	WaterwayImage *image.Gray
}

// DecodeTile decodes a plain or gzipped vector tile
func DecodeTile(data []byte) (mvt.Layers, error) {
	layers, err := mvt.Unmarshal(data)
	if errors.Is(err, mvt.ErrDataIsGZipped) {
		layers, err = mvt.UnmarshalGzipped(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding vector tile: %w", err)
	}
	return layers, nil
}

type builder struct {
	opts Options
	t    resample.Transform

	fill   canvas
	slopes canvas
	ways   canvas

	littoral   SlopeRamp
	riparian   SlopeRamp
	strokeSize float64
}

// Build decodes the vector tile results laid out by opts.Mosaic and draws
// their water features onto the output grid.
func Build(ctx context.Context, results []fetch.Result, opts Options) (Masks, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Size <= 0 || opts.UnitSize <= 0 || opts.Mosaic.Scale <= 0 {
		return Masks{}, fmt.Errorf("water: invalid options size=%d unit=%f scale=%f", opts.Size, opts.UnitSize, opts.Mosaic.Scale)
	}

	decoded := make([]mvt.Layers, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, r := range results {
		i, r := i, r
		if r.Err != nil || len(r.Data) == 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			layers, err := DecodeTile(r.Data)
			if err != nil {
				log.Debug("skipping vector tile", zap.Uint32("x", r.Tile.X), zap.Uint32("y", r.Tile.Y), zap.Error(err))
				return nil
			}
			decoded[i] = layers
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Masks{}, err
	}

	// one output pixel covers Scale mosaic pixels, so one mosaic pixel is
	// 1/Scale output pixels
	minWidth := 1 / opts.Mosaic.Scale
	meters := opts.UnitSize * 1000

	b := &builder{
		opts: opts,
		t: resample.Transform{
			OffsetX:  opts.Mosaic.OffsetX,
			OffsetY:  opts.Mosaic.OffsetY,
			Scale:    opts.Mosaic.Scale,
			Angle:    opts.Angle,
			HalfSize: opts.HalfSize,
		},
		fill:       canvas{grid.Filled(opts.Size, 1)},
		slopes:     canvas{grid.New(opts.Size)},
		ways:       canvas{grid.Filled(opts.Size, 1)},
		littoral:   NewSlopeRamp(opts.Profile, math.Max(opts.Littoral/meters, minWidth)),
		riparian:   NewSlopeRamp(opts.Profile, math.Max(opts.Riparian/meters, minWidth)),
		strokeSize: math.Max(opts.StreamWidth/meters, minWidth),
	}

	for i := range results {
		if err := ctx.Err(); err != nil {
			return Masks{}, err
		}
		if decoded[i] != nil {
			b.drawTile(i, decoded[i])
		}
		if opts.OnTile != nil {
			opts.OnTile(i)
		}
	}

	water := b.fill.g
	for i, v := range b.slopes.g.Data {
		if v > water.Data[i] {
			water.Data[i] = v
		}
	}
	waterway := effects.BlurSigma(b.ways.g, 1)

	m := Masks{Water: water, Waterway: waterway}
	if opts.Debug {
		m.WaterImage = canvas{water}.gray()
		m.WaterwayImage = canvas{waterway}.gray()
	}

	log.Debug("water masks built", zap.Int("tiles", len(results)), zap.Int("size", opts.Size))
	return m, nil
}

func (b *builder) drawTile(i int, layers mvt.Layers) {
	ppt := float64(b.opts.Mosaic.PixelsPerTile)
	ox, oy := b.opts.Mosaic.TileOrigin(i)

	toOutput := func(p orb.Point) orb.Point {
		x, y := b.t.Unmap(float64(ox)+p[0], float64(oy)+p[1])
		return orb.Point{x, y}
	}

	for _, l := range layers {
		if l.Name != LayerWater && l.Name != LayerWaterway {
			continue
		}

		extent := float64(l.Extent)
		if extent == 0 {
			extent = mvt.DefaultExtent
		}
		s := ppt / extent
		toTile := func(p orb.Point) orb.Point { return orb.Point{p[0] * s, p[1] * s} }

		switch l.Name {
		case LayerWater:
			b.drawWater(l, toTile, toOutput)
		case LayerWaterway:
			b.drawWaterways(l, toTile, toOutput)
		}
	}
}

func (b *builder) drawWater(l *mvt.Layer, toTile, toOutput orb.Projection) {
	ppt := float64(b.opts.Mosaic.PixelsPerTile)

	features := make([]feature, 0, len(l.Features))
	for idx, f := range l.Features {
		var polys orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			polys = g
		default:
			continue
		}

		features = append(features, feature{
			id:    featureID(f.ID, idx),
			ocean: f.Properties.MustString("class", "") == ClassOcean,
			polys: project.MultiPolygon(polys.Clone(), toTile),
		})
	}

	edges := newEdgeIndex(ppt, features)
	clipBound := orb.Bound{Min: orb.Point{-fillMargin, -fillMargin}, Max: orb.Point{ppt + fillMargin, ppt + fillMargin}}

	for _, f := range features {
		if !f.ocean || b.opts.IncludeOcean {
			for _, p := range f.polys {
				clipped := clip.Polygon(clipBound, p.Clone())
				if clipped == nil {
					continue
				}
				for ri, r := range clipped {
					path := []orb.Point(project.Ring(r.Clone(), toOutput))
					if ri == 0 {
						b.fill.fill([][]orb.Point{path}, 0)
					} else {
						b.fill.fill([][]orb.Point{path}, 1)
					}
				}
			}
		}

		ramp := b.riparian
		if f.ocean && b.opts.IncludeOcean {
			ramp = b.littoral
		}

		for _, p := range f.polys {
			for _, r := range p {
				for k := 0; k+1 < len(r); k++ {
					e := edge{a: r[k], b: r[k+1], id: f.id}
					if edges.skip(e) {
						continue
					}
					b.slopes.slope(toOutput(e.a), toOutput(e.b), ramp)
				}
			}
		}
	}
}

func (b *builder) drawWaterways(l *mvt.Layer, toTile, toOutput orb.Projection) {
	for _, f := range l.Features {
		var lines orb.MultiLineString
		switch g := f.Geometry.(type) {
		case orb.LineString:
			lines = orb.MultiLineString{g}
		case orb.MultiLineString:
			lines = g
		default:
			continue
		}

		for _, ls := range lines {
			out := make([]orb.Point, len(ls))
			for k, p := range ls {
				out[k] = toOutput(toTile(p))
			}
			for _, part := range chunks(out, chunkSpan) {
				b.ways.darken(stroke(part, b.strokeSize), 0)
			}
		}
	}
}

// chunkSpan limits the extent of one stroked part of a line in pixels
const chunkSpan = 512

// chunks splits a line into consecutive parts sharing their end points, so
// each part covers at most span pixels in either direction
func chunks(line []orb.Point, span float64) [][]orb.Point {
	if len(line) < 2 {
		return [][]orb.Point{line}
	}

	var parts [][]orb.Point
	start := 0
	bound := line[0].Bound()
	for k := 1; k < len(line); k++ {
		next := bound.Extend(line[k])
		if k-start > 1 && (next.Right()-next.Left() > span || next.Top()-next.Bottom() > span) {
			parts = append(parts, line[start:k])
			start = k - 1
			next = line[start].Bound().Extend(line[k])
		}
		bound = next
	}
	return append(parts, line[start:])
}

func featureID(id interface{}, index int) float64 {
	if v, ok := id.(float64); ok {
		return v
	}
	return -float64(index + 1)
}
