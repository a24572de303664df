package effects

import (
	"math"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
	"github.com/ojrac/opensimplex-go"
)

// NoiseParams configure Noise
type NoiseParams struct {
	// Amount is the maximum noise height in meters
	Amount float32
	// Grid is the noise wavelength in meters
	Grid float64
	// PixelDistance is the size of one pixel in meters
	PixelDistance float64
	// TRI limits noise to rugged terrain when > 0
	TRI  float32
	Seed int64

	// Threshold and Fade gate the noise by elevation
	Threshold float32
	Fade      float32

	// OriginX and OriginY place src in the full map so that sub tiles
	// receive continuous noise
	OriginX int
	OriginY int
}

// Noise returns a grid of coherent noise heights for src. Noise is only
// generated above the elevation threshold and, with TRI set, only where the
// terrain ruggedness index of src reaches TRI.
func Noise(src grid.Grid, p NoiseParams) grid.Grid {
	size := src.Size
	out := grid.New(size)

	frequency := 1.0
	if p.Grid > 0 {
		frequency = p.PixelDistance / p.Grid
	}

	var mask grid.Grid
	if p.TRI > 0 {
		mask = Blur(triMask(src, p.TRI), p.maskRadius())
	}

	n := opensimplex.NewNormalized(p.Seed)
	for y := 0; y < size; y++ {
		fy := float64(y+p.OriginY) * frequency
		for x := 0; x < size; x++ {
			i := y*size + x

			a := LowerAlpha(src.Data[i], p.Threshold, p.Fade)
			if mask.Size > 0 {
				a *= mask.Data[i]
			}
			if a == 0 {
				continue
			}

			fx := float64(x+p.OriginX) * frequency
			v := math.Min(math.Max(n.Eval2(fx, fy), 0), 1)
			out.Data[i] = float32(v) * p.Amount * a
		}
	}

	return out
}

// maskRadius is the blur radius of the TRI mask in pixels
func (p NoiseParams) maskRadius() float64 {
	if p.PixelDistance > 0 {
		return math.Max(float64(p.Amount)/p.PixelDistance, 1)
	}
	return 1
}

// TRI calculates the terrain ruggedness index, the mean absolute elevation
// difference of every cell to its neighbors inside the grid
func TRI(src grid.Grid) grid.Grid {
	size := src.Size
	out := grid.New(size)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := src.Data[y*size+x]

			var sum float32
			count := 0
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= size {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if (dx == 0 && dy == 0) || nx < 0 || nx >= size {
						continue
					}
					sum += float32(math.Abs(float64(v - src.Data[ny*size+nx])))
					count++
				}
			}

			if count > 0 {
				out.Data[y*size+x] = sum / float32(count)
			}
		}
	}

	return out
}

func triMask(src grid.Grid, threshold float32) grid.Grid {
	mask := TRI(src)
	for i, v := range mask.Data {
		if v >= threshold {
			mask.Data[i] = 1
		} else {
			mask.Data[i] = 0
		}
	}
	return mask
}
