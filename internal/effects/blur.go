package effects

import (
	"math"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
)

// Sigma converts a blur radius in pixels to the gaussian standard deviation
func Sigma(radius float64) float64 {
	return (radius-1)*0.3 + 0.8
}

// halfWidth is the number of cells the kernel of sigma reaches on each side
func halfWidth(sigma float64) int {
	if sigma <= 0 {
		return 0
	}
	return int(math.Ceil(3 * sigma))
}

// KernelRadius is the number of cells a blur of radius reads on each side of
// a cell
func KernelRadius(radius float64) int {
	return halfWidth(Sigma(radius))
}

func kernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}

	half := halfWidth(sigma)
	k := make([]float64, 2*half+1)

	var sum float64
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}

	return k
}

// Blur returns a gaussian blurred copy of src for a radius in pixels
func Blur(src grid.Grid, radius float64) grid.Grid {
	return BlurSigma(src, Sigma(radius))
}

// BlurSigma returns a gaussian blurred copy of src. The convolution is
// separable and reads beyond the border repeat the edge.
func BlurSigma(src grid.Grid, sigma float64) grid.Grid {
	k := kernel(sigma)
	half := len(k) / 2
	size := src.Size

	tmp := grid.New(size)
	for y := 0; y < size; y++ {
		row := src.Data[y*size : (y+1)*size]
		for x := 0; x < size; x++ {
			var sum float64
			for i, w := range k {
				sum += w * float64(row[clamp(x+i-half, size)])
			}
			tmp.Data[y*size+x] = float32(sum)
		}
	}

	out := grid.New(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			var sum float64
			for i, w := range k {
				sum += w * float64(tmp.Data[clamp(y+i-half, size)*size+x])
			}
			out.Data[y*size+x] = float32(sum)
		}
	}

	return out
}

// GaussianBlur blurs src and blends the result with the original by
// blend * UpperAlpha(original, threshold, fade).
func GaussianBlur(src grid.Grid, radius, blend, threshold, fade float32) grid.Grid {
	blurred := Blur(src, float64(radius))

	for i, v := range src.Data {
		a := blend * UpperAlpha(v, threshold, fade)
		blurred.Data[i] = (1-a)*v + a*blurred.Data[i]
	}

	return blurred
}

// UnsharpMask sharpens src by amount against a fresh blur at radius. The
// result is blended with the original by LowerAlpha(original, threshold, fade).
func UnsharpMask(src grid.Grid, amount, radius, threshold, fade float32) grid.Grid {
	out := GaussianBlur(src, radius, 1, 100000, 0)

	for i, v := range src.Data {
		sharpened := v + amount*(v-out.Data[i])
		a := LowerAlpha(v, threshold, fade)
		out.Data[i] = (1-a)*v + a*sharpened
	}

	return out
}

func clamp(i, size int) int {
	if i < 0 {
		return 0
	}
	if i >= size {
		return size - 1
	}
	return i
}
