// Package effects implements the terrain effects applied to the resampled
// elevation: smoothing, sharpening and noise.
package effects

import (
	"context"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
)

// Params configure Apply. A strength of 0 skips its pass.
type Params struct {
	// Smoothing is the blend factor of the blur in [0,1]
	Smoothing       float32
	SmoothRadius    float32
	SmoothThreshold float32
	SmoothFade      float32

	// Sharpen is the unsharp mask amount
	Sharpen          float32
	SharpenRadius    float32
	SharpenThreshold float32
	SharpenFade      float32

	Noise NoiseParams
}

// Result holds the effected elevation and the noise to be added on land. Noise
// has size 0 when no noise was requested.
type Result struct {
	Effected grid.Grid
	Noise    grid.Grid
}

// Reach is the number of cells on each side of a cell whose input values
// influence its result. A sub grid padded by at least Reach cells yields the
// same core values as the full grid.
func (p Params) Reach() int {
	reach := 0
	if p.Smoothing > 0 {
		reach += KernelRadius(float64(p.SmoothRadius))
	}
	if p.Sharpen > 0 {
		reach += KernelRadius(float64(p.SharpenRadius))
	}
	if p.Noise.Amount > 0 && p.Noise.TRI > 0 {
		// the TRI reads the direct neighbors before its mask is blurred
		reach += 1 + KernelRadius(p.Noise.maskRadius())
	}
	return reach
}

// Apply runs smoothing, sharpening and noise on src in that order. src is
// consumed. With every strength at 0 the elevation is returned unchanged.
func Apply(ctx context.Context, src grid.Grid, p Params) (Result, error) {
	effected := src

	if p.Smoothing > 0 {
		effected = GaussianBlur(effected, p.SmoothRadius, p.Smoothing, p.SmoothThreshold, p.SmoothFade)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if p.Sharpen > 0 {
		effected = UnsharpMask(effected, p.Sharpen, p.SharpenRadius, p.SharpenThreshold, p.SharpenFade)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var noise grid.Grid
	if p.Noise.Amount > 0 {
		noise = Noise(effected, p.Noise)
	}

	return Result{Effected: effected, Noise: noise}, nil
}
