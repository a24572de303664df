package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/gruppe-adler/meh-heightmap/internal/combine"
	"github.com/gruppe-adler/meh-heightmap/internal/coords"
	"github.com/gruppe-adler/meh-heightmap/internal/decoder"
	"github.com/gruppe-adler/meh-heightmap/internal/effects"
	"github.com/gruppe-adler/meh-heightmap/internal/fetch"
	"github.com/gruppe-adler/meh-heightmap/internal/grid"
	"github.com/gruppe-adler/meh-heightmap/internal/resample"
	"github.com/gruppe-adler/meh-heightmap/internal/settings"
	"github.com/gruppe-adler/meh-heightmap/internal/tiling"
	"github.com/gruppe-adler/meh-heightmap/internal/water"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// run is the state of one Generator.Run call
type run struct {
	g        *Generator
	log      *zap.Logger
	ev       emitter
	settings settings.Settings
	opts     Options
	spec     settings.MapSpec

	providers Providers
	pool      *decoder.Pool
	profile   [9]float64

	resolution int
	divisions  int

	// unitSize is the size of one map pixel in km at offset 0
	unitSize float64
	// bufferPixels is the size of the working buffers, the map plus
	// bufferPadding on each side
	bufferPixels int
	// sampledPixels is the number of output pixels the sampled extent spans
	sampledPixels int
}

func (g *Generator) newRun(ctx context.Context, s settings.Settings, opts Options, resolution int, events chan<- Event) (*run, error) {
	spec, err := s.Spec()
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	profile, err := water.ParseProfile(s.LittArray)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	mapPixels := resolution - spec.Correction

	return &run{
		g:   g,
		log: g.log.With(zap.Float64("lng", s.Lng), zap.Float64("lat", s.Lat)),
		ev:  emitter{ctx: ctx, ch: events},

		settings:  s,
		opts:      opts,
		spec:      spec,
		providers: g.cfg.Providers(s),
		profile:   profile,

		resolution:    resolution,
		divisions:     tiling.Divisions(resolution),
		unitSize:      s.Size / float64(mapPixels),
		bufferPixels:  resolution + 2*bufferPadding,
		sampledPixels: mapPixels + 2*mapPadding,
	}, nil
}

// layers are the inputs of the effect and combine stage, all of the same size
type layers struct {
	elevation grid.Grid
	water     grid.Grid
	waterway  grid.Grid

	waterImage    *image.Gray
	waterwayImage *image.Gray

	zoom      uint32
	tileCount int
	// unitSize is the size of one pixel in km
	unitSize float64
}

// mapData fetches and rasterizes the elevation and water of the map shrunk by
// offset on each side. Terrain, ocean and water are processed concurrently.
func (r *run) mapData(ctx context.Context, offset float64) (layers, error) {
	s := r.settings
	unitSize := r.unitSize * (1 - 2*offset)
	halfSize := float64(r.bufferPixels-r.spec.Correction) / 2
	terrain, vector, ocean := r.mosaics(offset)

	out := layers{
		zoom:      terrain.Range.Zoom,
		tileCount: terrain.Range.Total() + vector.Range.Total() + ocean.Range.Total(),
		unitSize:  unitSize,
	}
	r.log.Debug("map data",
		zap.Float64("offset", offset),
		zap.Uint32("zoom", terrain.Range.Zoom),
		zap.Int("tiles", out.tileCount),
		zap.Float64("scale", terrain.Scale),
	)

	r.ev.phase("Downloading and processing tiles")
	// every tile settles once when fetched and once when decoded or drawn
	r.ev.total(2 * out.tileCount)

	var oceanDepth grid.Grid
	var masks water.Masks

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		el, err := r.elevation(gctx, r.providers.Terrain, terrain)
		if err != nil {
			return err
		}
		out.elevation = el
		return nil
	})

	if s.ActualSeafloor {
		g.Go(func() error {
			el, err := r.elevation(gctx, r.providers.Ocean, ocean)
			if err != nil {
				return err
			}
			oceanDepth = el
			return nil
		})
	}

	g.Go(func() error {
		results, err := r.g.fetcher.FetchAll(gctx, r.providers.Vector, vector.Range.Tiles(), r.settled)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}

		masks, err = water.Build(gctx, results, water.Options{
			Mosaic:       vector,
			Angle:        s.Angle,
			HalfSize:     halfSize,
			Size:         r.bufferPixels,
			UnitSize:     unitSize,
			Littoral:     s.Littoral,
			Riparian:     s.Riparian,
			StreamWidth:  s.StreamWidth,
			Profile:      r.profile,
			IncludeOcean: !s.ActualSeafloor,
			Debug:        r.opts.Debug,
			Logger:       r.log.Named("water"),
			OnTile:       r.settled,
		})
		if err != nil {
			return fmt.Errorf("water: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return layers{}, err
	}

	if oceanDepth.Size > 0 {
		for i, v := range oceanDepth.Data {
			out.elevation.Data[i] += v
		}
	}

	out.water = masks.Water
	out.waterway = masks.Waterway
	out.waterImage = masks.WaterImage
	out.waterwayImage = masks.WaterwayImage

	return out, nil
}

// mosaics lays out the tiles of every source for the map shrunk by offset.
// ocean is empty unless the seafloor is included.
func (r *run) mosaics(offset float64) (terrain, vector, ocean coords.Mosaic) {
	s := r.settings
	side := float64(r.sampledPixels) * r.unitSize

	mosaic := func(p fetch.Provider, maxZoom uint32, bias int) coords.Mosaic {
		e := coords.GetExtent(s.Lng, s.Lat, side, offset, float64(p.PixelsPerTile))
		if p.MaxZoom < maxZoom {
			maxZoom = p.MaxZoom
		}
		return coords.NewMosaic(e, coords.MosaicOptions{
			OutputPixels: r.sampledPixels,
			MaxZoom:      maxZoom,
			ZoomBias:     bias,
			Angle:        s.Angle,
			Correction:   r.spec.Correction,
		})
	}

	terrain = mosaic(r.providers.Terrain, coords.MaxZoomTerrain, 0)
	vector = mosaic(r.providers.Vector, coords.MaxZoomTerrain, s.Waterside)
	if s.ActualSeafloor {
		ocean = mosaic(r.providers.Ocean, coords.MaxZoomOcean, 0)
	}
	return terrain, vector, ocean
}

// settled reports one unit of tile work
func (r *run) settled(int) {
	r.ev.progress()
}

// elevation fetches, decodes and resamples one raster source onto the output
// grid
func (r *run) elevation(ctx context.Context, p fetch.Provider, m coords.Mosaic) (grid.Grid, error) {
	results, err := r.g.fetcher.FetchAll(ctx, p, m.Range.Tiles(), r.settled)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("fetch: %w", err)
	}

	mosaic, err := decoder.DecodeMosaic(ctx, r.pool, results, m, decoder.MosaicOptions{
		Logger:    r.log.Named("decoder"),
		OnDecoded: r.settled,
	})
	if err != nil {
		return grid.Grid{}, fmt.Errorf("decode: %w", err)
	}

	kernel, err := resample.ParseKernel(r.settings.Interpolation, m.Scale)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("resample: %w", err)
	}

	out, err := resample.Resample(ctx, mosaic, r.bufferPixels, resample.Transform{
		OffsetX:  m.OffsetX,
		OffsetY:  m.OffsetY,
		Scale:    m.Scale,
		Angle:    r.settings.Angle,
		HalfSize: float64(r.bufferPixels-r.spec.Correction) / 2,
	}, kernel)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("resample: %w", err)
	}
	return out, nil
}

// single produces the map of every format but the cs2 download
func (r *run) single(ctx context.Context) (Result, error) {
	l, err := r.mapData(ctx, r.spec.ExtentOffset)
	if err != nil {
		return Result{}, err
	}

	divisor := 1.0
	if r.opts.Mode == ModePreview && r.settings.GridInfo == settings.GridCS2 {
		divisor = 4
	}

	r.ev.phase("Processing map")
	merged, err := r.processMaps(ctx, l, r.divisions, divisor)
	if err != nil {
		return Result{}, err
	}
	heightmap := tiling.Extract(merged, bufferPadding, bufferPadding, r.resolution)

	return Result{
		Heightmap:     heightmap,
		Stats:         combine.MinMax(heightmap, 0, r.g.cfg.MinMaxStride),
		Zoom:          l.zoom,
		TileCount:     l.tileCount,
		WaterImage:    l.waterImage,
		WaterwayImage: l.waterwayImage,
	}, nil
}

// worldMap produces the cs2 playable area and the surrounding world map. The
// world map is scaled up to the resolution of the playable area, the
// playable area is feathered into it, and both are processed as one buffer.
func (r *run) worldMap(ctx context.Context) (Result, error) {
	world, err := r.mapData(ctx, 0)
	if err != nil {
		return Result{}, err
	}
	hm, err := r.mapData(ctx, 0.375)
	if err != nil {
		return Result{}, err
	}

	r.ev.phase("Blending world map")
	up := layers{
		waterImage:    hm.waterImage,
		waterwayImage: hm.waterwayImage,
		unitSize:      hm.unitSize,
	}
	blend := []struct {
		dst         *grid.Grid
		world, play grid.Grid
	}{
		{&up.elevation, world.elevation, hm.elevation},
		{&up.water, world.water, hm.water},
		{&up.waterway, world.waterway, hm.waterway},
	}
	for _, b := range blend {
		scaled, err := resample.ScaleUp(ctx, b.world, worldMapFactor, bufferPadding)
		if err != nil {
			return Result{}, fmt.Errorf("resample: %w", err)
		}
		if *b.dst, err = tiling.BlendWithFeathering(scaled, b.play, bufferPadding, featherSize); err != nil {
			return Result{}, fmt.Errorf("tiling: %w", err)
		}
	}

	r.ev.phase("Processing map")
	merged, err := r.processMaps(ctx, up, tiling.MaxDivisions, 1)
	if err != nil {
		return Result{}, err
	}

	offset := (merged.Size - r.resolution) / 2
	heightmap := tiling.Extract(merged, offset, offset, r.resolution)
	worldMap, err := tiling.ScaleDown(tiling.Extract(merged, bufferPadding, bufferPadding, r.resolution*worldMapFactor), worldMapFactor)
	if err != nil {
		return Result{}, fmt.Errorf("tiling: %w", err)
	}

	stats := combine.MinMax(heightmap, 0, 1).Merge(combine.MinMax(worldMap, 0, 1))

	return Result{
		Heightmap:     heightmap,
		WorldMap:      worldMap,
		Stats:         stats,
		Zoom:          hm.zoom,
		TileCount:     world.tileCount + hm.tileCount,
		WaterImage:    hm.waterImage,
		WaterwayImage: hm.waterwayImage,
	}, nil
}

// processMaps splits the layers into divisions² sub tiles, applies the effects
// and combines every sub tile on a pool worker, and merges the results. Sub
// tiles are padded by the reach of the effects, so the merged grid does not
// depend on the number of divisions.
func (r *run) processMaps(ctx context.Context, l layers, divisions int, radiusDivisor float64) (grid.Grid, error) {
	size := l.elevation.Size
	params := r.effectParams(l.unitSize, radiusDivisor)

	padding := tiling.Padding
	if reach := params.Reach(); reach > padding {
		padding = reach
	}
	for divisions > 1 {
		if _, err := tiling.NewLayout(size, divisions, padding); err == nil {
			break
		}
		divisions--
	}
	if divisions == 1 {
		padding = tiling.Padding
	}
	r.log.Debug("processing map", zap.Int("divisions", divisions), zap.Int("padding", padding))

	layout, err := tiling.NewLayout(size, divisions, padding)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("tiling: %w", err)
	}
	elevation, err := tiling.Split(l.elevation, divisions, padding)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("tiling: %w", err)
	}
	waterTiles, err := tiling.Split(l.water, divisions, padding)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("tiling: %w", err)
	}
	waterwayTiles, err := tiling.Split(l.waterway, divisions, padding)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("tiling: %w", err)
	}

	combineParams := combine.Params{
		SeaLevel:    float32(r.settings.SeaLevel),
		VertScale:   float32(r.settings.VertScale),
		Depth:       float32(r.settings.Depth),
		StreamDepth: float32(r.settings.StreamDepth),
	}

	n := len(elevation)
	r.ev.total(n)

	results := make([]grid.Grid, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.pool.Size())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			w, err := r.pool.Acquire(gctx)
			if err != nil {
				return err
			}
			defer r.pool.Release(w)

			p := params
			p.Noise.OriginX, p.Noise.OriginY = layout.Origin(i)

			effected, err := effects.Apply(gctx, elevation[i], p)
			if err != nil {
				return err
			}
			elevation[i] = grid.Grid{}

			results[i] = combine.Combine(combine.Inputs{
				Effected: effected.Effected,
				Noise:    effected.Noise,
				Water:    waterTiles[i],
				Waterway: waterwayTiles[i],
			}, combineParams)

			r.log.Debug("sub tile done", zap.Int("tile", i), zap.Int("worker", w))
			r.ev.progress()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return grid.Grid{}, err
	}

	merged, err := tiling.Merge(results, size, padding)
	if err != nil {
		return grid.Grid{}, fmt.Errorf("tiling: %w", err)
	}
	return merged, nil
}

// effectParams derives the effect parameters of layers with the given unit
// size. Radii are configured for the native resolution and scale with it.
func (r *run) effectParams(unitSize, radiusDivisor float64) effects.Params {
	s := r.settings
	resScale := 1.0
	if s.Resolution > 0 {
		resScale = float64(r.resolution) / float64(s.Resolution)
	}

	return effects.Params{
		Smoothing:       float32(s.Smoothing / 100),
		SmoothRadius:    float32(s.SmoothRadius * resScale / radiusDivisor),
		SmoothThreshold: float32(s.SmthThres),
		SmoothFade:      float32(s.SmthFade),

		Sharpen:          float32(s.Sharpen / 100),
		SharpenRadius:    float32(s.SharpenRadius * resScale / radiusDivisor),
		SharpenThreshold: float32(s.ShrpThres),
		SharpenFade:      float32(s.ShrpFade),

		Noise: effects.NoiseParams{
			Amount:        float32(s.Noise),
			Grid:          s.NoiseGrid,
			PixelDistance: unitSize * 1000,
			TRI:           float32(s.NoiseThres),
			Seed:          s.NoiseSeed,
			Threshold:     float32(s.ShrpThres),
			Fade:          float32(s.ShrpFade),
		},
	}
}
