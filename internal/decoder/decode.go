package decoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // terrain-rgb png tiles

	"github.com/gruppe-adler/meh-heightmap/internal/coords"
	"github.com/gruppe-adler/meh-heightmap/internal/fetch"
	"github.com/gruppe-adler/meh-heightmap/internal/grid"
	"github.com/gruppe-adler/meh-heightmap/internal/terrainrgb"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // terrain-rgb webp tiles
	"golang.org/x/sync/errgroup"
)

// PoolThreshold is the number of tiles above which decoding is spread across
// the pool
const PoolThreshold = 30

// Decode decodes a png or webp tile
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding tile: %w", err)
	}
	if format != "png" && format != "webp" {
		return nil, fmt.Errorf("decoding tile: unsupported format %s", format)
	}
	return img, nil
}

// MosaicOptions configure DecodeMosaic
type MosaicOptions struct {
	Logger *zap.Logger
	// OnDecoded is called once per tile, including failed ones
	OnDecoded func(i int)
}

// DecodeMosaic decodes the successful fetch results into one elevation
// mosaic laid out by m. The mosaic is pre-filled with sea level, so the area
// of a failed tile stays at 0m.
func DecodeMosaic(ctx context.Context, pool *Pool, results []fetch.Result, m coords.Mosaic, opts MosaicOptions) (grid.Grid, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	mosaic := grid.Filled(m.Size, float32(terrainrgb.RgbToHeight(terrainrgb.SeaLevel)))

	decodeTile := func(i int) {
		defer func() {
			if opts.OnDecoded != nil {
				opts.OnDecoded(i)
			}
		}()

		r := results[i]
		if r.Err != nil || r.Data == nil {
			return
		}

		img, err := Decode(r.Data)
		if err != nil {
			log.Debug("skipping tile", zap.Uint32("x", r.Tile.X), zap.Uint32("y", r.Tile.Y), zap.Error(err))
			return
		}

		x, y := m.TileOrigin(i)
		place(mosaic, img, x, y, m.PixelsPerTile)
	}

	if len(results) <= PoolThreshold || pool == nil {
		for i := range results {
			if err := ctx.Err(); err != nil {
				return grid.Grid{}, err
			}
			decodeTile(i)
		}
		return mosaic, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		i := i
		g.Go(func() error {
			w, err := pool.Acquire(gctx)
			if err != nil {
				return err
			}
			defer pool.Release(w)

			decodeTile(i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return grid.Grid{}, err
	}

	return mosaic, nil
}

// place writes the decoded heights of img into dst at x, y, limited to a
// ppt*ppt block
func place(dst grid.Grid, img image.Image, x, y, ppt int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	heights := terrainrgb.DecodeImage(img)

	cw, ch := w, h
	if cw > ppt {
		cw = ppt
	}
	if ch > ppt {
		ch = ppt
	}
	if x+cw > dst.Size {
		cw = dst.Size - x
	}
	if y+ch > dst.Size {
		ch = dst.Size - y
	}
	if cw <= 0 || ch <= 0 {
		return
	}

	for row := 0; row < ch; row++ {
		copy(dst.Data[(y+row)*dst.Size+x:(y+row)*dst.Size+x+cw], heights[row*w:row*w+cw])
	}
}
