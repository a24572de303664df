package resample

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
	"golang.org/x/sync/errgroup"
)

// Transform maps output pixels onto source pixels. The output is rotated by
// Angle degrees around its center HalfSize and scaled by Scale source pixels
// per output pixel. The output center lands on OffsetX, OffsetY.
type Transform struct {
	OffsetX  float64
	OffsetY  float64
	Scale    float64
	Angle    float64
	HalfSize float64
}

// Map returns the source position of output pixel x, y
func (t Transform) Map(x, y float64) (float64, float64) {
	theta := -t.Angle * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	dx := x - t.HalfSize
	dy := y - t.HalfSize

	return t.OffsetX + t.Scale*(cos*dx+sin*dy),
		t.OffsetY + t.Scale*(cos*dy-sin*dx)
}

// Unmap is the inverse of Map
func (t Transform) Unmap(sx, sy float64) (float64, float64) {
	theta := -t.Angle * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	u := (sx - t.OffsetX) / t.Scale
	v := (sy - t.OffsetY) / t.Scale

	return t.HalfSize + cos*u - sin*v,
		t.HalfSize + sin*u + cos*v
}

// Resample produces a size*size grid by sampling src through t. Rows are
// processed in parallel bands.
func Resample(ctx context.Context, src grid.Grid, size int, t Transform, k Kernel) (grid.Grid, error) {
	out := grid.New(size)

	bands := runtime.NumCPU()
	if bands > size {
		bands = size
	}
	if bands < 1 {
		bands = 1
	}
	rowsPerBand := (size + bands - 1) / bands

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < size; start += rowsPerBand {
		start := start
		end := start + rowsPerBand
		if end > size {
			end = size
		}

		g.Go(func() error {
			for y := start; y < end; y++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				row := out.Data[y*size : (y+1)*size]
				for x := range row {
					sx, sy := t.Map(float64(x), float64(y))
					row[x] = k.Sample(src, sx, sy)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return grid.Grid{}, err
	}

	return out, nil
}

// ScaleUp enlarges the core of src by factor with the Mitchell-Netravali
// kernel. The result keeps a border of padding cells around the enlarged
// core, sampled from the padding of src.
func ScaleUp(ctx context.Context, src grid.Grid, factor, padding int) (grid.Grid, error) {
	core := src.Size - 2*padding
	if core <= 0 || factor <= 0 {
		return grid.Grid{}, fmt.Errorf("resample: cannot scale a %d grid with padding %d by %d", src.Size, padding, factor)
	}

	p := float64(padding)
	t := Transform{
		OffsetX:  p,
		OffsetY:  p,
		Scale:    1 / float64(factor),
		HalfSize: p,
	}

	return Resample(ctx, src, core*factor+2*padding, t, Bicubic())
}
