// Package pipeline generates heightmaps: it fetches and decodes the tiles of
// an area, resamples them onto the output grid, draws the water masks,
// applies the terrain effects and combines everything into the final
// elevation.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/gruppe-adler/meh-heightmap/internal/combine"
	"github.com/gruppe-adler/meh-heightmap/internal/coords"
	"github.com/gruppe-adler/meh-heightmap/internal/decoder"
	"github.com/gruppe-adler/meh-heightmap/internal/fetch"
	"github.com/gruppe-adler/meh-heightmap/internal/grid"
	"github.com/gruppe-adler/meh-heightmap/internal/settings"
	"github.com/gruppe-adler/meh-heightmap/internal/validate"
	"go.uber.org/zap"
)

const (
	// mapPadding is added around the requested map on each side before
	// sampling
	mapPadding = 110
	// bufferPadding is the padding of the working buffer, the map is
	// extracted from inside it at the end
	bufferPadding = 100
	// featherSize is the width of the transition between the cs2 world map
	// and the playable area
	featherSize = 100
	// worldMapFactor is the resolution ratio between the cs2 playable area
	// and the world map
	worldMapFactor = 4
)

// Mode selects what a run produces
type Mode int

const (
	// ModePreview returns the elevation grid and debug images, nothing is
	// encoded
	ModePreview Mode = iota
	// ModeDownload additionally encodes the heightmap as 16 bit png
	ModeDownload
)

func (m Mode) String() string {
	if m == ModeDownload {
		return "download"
	}
	return "preview"
}

// Providers are the tile sources of a run
type Providers struct {
	Terrain fetch.Provider
	Ocean   fetch.Provider
	Vector  fetch.Provider
}

// DefaultProviders selects the built-in sources for s
func DefaultProviders(s settings.Settings) Providers {
	if s.Provider == "maptiler" {
		return Providers{
			Terrain: fetch.MapTilerTerrain(s.AccessTokenMT),
			Ocean:   fetch.MapTilerOcean(s.AccessTokenMT),
			Vector:  fetch.MapTilerVector(s.AccessTokenMT),
		}
	}
	return Providers{
		Terrain: fetch.MapboxTerrain(s.AccessToken),
		Ocean:   fetch.MapTilerOcean(s.AccessTokenMT),
		Vector:  fetch.MapboxStreets(s.AccessToken),
	}
}

// Config holds the dependencies of a Generator
type Config struct {
	Client *http.Client
	Logger *zap.Logger

	// CacheSize is the number of fetched tiles kept in memory across runs
	CacheSize int64
	// MaxRetries bounds the retries per tile, 0 selects
	// fetch.DefaultMaxRetries
	MaxRetries    uint64
	RetryInterval time.Duration
	// Workers sizes the decoder pool and the sub tile fan-out
	Workers int
	// MinMaxStride > 1 samples only every n-th cell for the elevation
	// statistics
	MinMaxStride int

	// Providers overrides the built-in tile sources
	Providers func(s settings.Settings) Providers
}

// Options configure one run
type Options struct {
	Mode Mode
	// Resolution overrides the resolution of the settings when > 0
	Resolution int
	// Debug renders the water masks as images
	Debug bool
}

// Result of a run
type Result struct {
	Heightmap grid.Grid
	// WorldMap is only set for cs2 downloads
	WorldMap grid.Grid
	Stats    combine.Stats

	Zoom      uint32
	TileCount int

	WaterImage    *image.Gray
	WaterwayImage *image.Gray

	// PNG and WorldMapPNG hold the encoded heightmaps in download mode
	PNG         []byte
	WorldMapPNG []byte
}

// Generator runs heightmap generations. It is safe for concurrent use, runs
// share the tile cache.
type Generator struct {
	cfg     Config
	log     *zap.Logger
	fetcher *fetch.Fetcher
}

// New creates a Generator
func New(cfg Config) *Generator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = decoder.DefaultSize()
	}
	if cfg.MinMaxStride < 1 {
		cfg.MinMaxStride = 1
	}
	if cfg.Providers == nil {
		cfg.Providers = DefaultProviders
	}

	return &Generator{
		cfg: cfg,
		log: cfg.Logger,
		fetcher: fetch.New(fetch.Config{
			Client:    cfg.Client,
			Logger:    cfg.Logger.Named("fetch"),
			CacheSize:       cfg.CacheSize,
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInterval,
		}),
	}
}

// Close releases the tile cache
func (g *Generator) Close() {
	g.fetcher.Close()
}

// Run generates the heightmap described by s. Progress is reported on events,
// which is closed when Run returns. events may be nil.
func (g *Generator) Run(ctx context.Context, s settings.Settings, opts Options, events chan<- Event) (Result, error) {
	if events != nil {
		defer close(events)
	}

	resolution := opts.Resolution
	if resolution <= 0 {
		resolution = s.Resolution
	}
	if err := validate.Settings(s, resolution); err != nil {
		return Result{}, fmt.Errorf("settings: %w", err)
	}

	r, err := g.newRun(ctx, s, opts, resolution, events)
	if err != nil {
		return Result{}, err
	}
	r.pool = decoder.NewPool(g.cfg.Workers)
	defer r.pool.Terminate()

	r.log.Info("starting run",
		zap.Stringer("mode", opts.Mode),
		zap.String("grid", string(s.GridInfo)),
		zap.Int("resolution", resolution),
		zap.Int("divisions", r.divisions),
	)

	var res Result
	if opts.Mode == ModeDownload && s.GridInfo == settings.GridCS2 {
		res, err = r.worldMap(ctx)
	} else {
		res, err = r.single(ctx)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.log.Info("run cancelled")
		}
		return Result{}, err
	}

	if opts.Mode == ModeDownload {
		r.ev.phase("Encoding to PNG data")
		if res.PNG, err = r.encode(res.Heightmap, res.Stats); err != nil {
			return Result{}, fmt.Errorf("encode: %w", err)
		}
		if res.WorldMap.Size > 0 {
			if res.WorldMapPNG, err = r.encode(res.WorldMap, res.Stats); err != nil {
				return Result{}, fmt.Errorf("encode: %w", err)
			}
		}
	}

	r.ev.phase("Completed")
	r.log.Info("run finished", zap.Float32("min", res.Stats.Min), zap.Float32("max", res.Stats.Max))

	return res, nil
}

// Plan describes the tiles a run would request, without requesting them
type Plan struct {
	Resolution int
	// UnitSize is the size of one map pixel in meters
	UnitSize  float64
	Divisions int

	Extent coords.Extent
	Zoom   uint32

	TerrainTiles int
	VectorTiles  int
	OceanTiles   int
}

// Plan calculates the Plan of a run
func (g *Generator) Plan(s settings.Settings, opts Options) (Plan, error) {
	resolution := opts.Resolution
	if resolution <= 0 {
		resolution = s.Resolution
	}
	if err := validate.Settings(s, resolution); err != nil {
		return Plan{}, fmt.Errorf("settings: %w", err)
	}

	r, err := g.newRun(context.Background(), s, opts, resolution, nil)
	if err != nil {
		return Plan{}, err
	}

	offset := r.spec.ExtentOffset
	terrain, vector, ocean := r.mosaics(offset)

	return Plan{
		Resolution:   resolution,
		UnitSize:     r.unitSize * (1 - 2*offset) * 1000,
		Divisions:    r.divisions,
		Extent:       coords.GetExtent(s.Lng, s.Lat, s.Size*(1-2*offset), 0, float64(r.providers.Terrain.PixelsPerTile)),
		Zoom:         terrain.Range.Zoom,
		TerrainTiles: terrain.Range.Total(),
		VectorTiles:  vector.Range.Total(),
		OceanTiles:   ocean.Range.Total(),
	}, nil
}

// encode quantizes heights relative to the base level and encodes them
func (r *run) encode(g grid.Grid, stats combine.Stats) ([]byte, error) {
	s := r.settings

	var base float32
	if s.AdjLevel {
		base = stats.Min
	}

	mode, err := combine.ParseScaleMode(s.Type)
	if err != nil {
		return nil, err
	}

	factor := combine.ScaleFactor(mode, stats, base, float32(s.ElevationScale))
	q := combine.Quantize(g, base, factor, float32(s.UnitScale()))

	buf := bytes.Buffer{}
	if err := combine.EncodePNG(&buf, q, g.Size); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
