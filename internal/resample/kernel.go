package resample

import (
	"fmt"
	"math"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
)

// Kernel interpolates src at a fractional position
type Kernel interface {
	Sample(src grid.Grid, x, y float64) float32
}

// Bilinear interpolates between the four nearest cells
type Bilinear struct{}

// Sample implements Kernel
func (Bilinear) Sample(src grid.Grid, x, y float64) float32 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	dx := x - float64(x0)
	dy := y - float64(y0)
	ex := 1 - dx
	ey := 1 - dy

	return float32(ex*ey*float64(src.Clamped(x0, y0)) +
		dx*ey*float64(src.Clamped(x0+1, y0)) +
		ex*dy*float64(src.Clamped(x0, y0+1)) +
		dx*dy*float64(src.Clamped(x0+1, y0+1)))
}

// Cubic is a separable 4x4 cubic convolution
type Cubic struct {
	weight func(d float64) float64
}

// Bicubic returns a Mitchell-Netravali (B = C = 1/3) kernel
func Bicubic() Cubic {
	return Cubic{weight: mitchell(1.0/3, 1.0/3)}
}

// CatmullRom returns a Keys cubic kernel with a = -1 for downscaling and
// a = -0.5 otherwise. scale is the number of source pixels per output pixel.
func CatmullRom(scale float64) Cubic {
	a := -0.5
	if scale > 1 {
		a = -1
	}
	return Cubic{weight: keys(a)}
}

// Sample implements Kernel
func (c Cubic) Sample(src grid.Grid, x, y float64) float32 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	tx := x - float64(x0)
	ty := y - float64(y0)

	wx := [4]float64{c.weight(1 + tx), c.weight(tx), c.weight(1 - tx), c.weight(2 - tx)}
	wy := [4]float64{c.weight(1 + ty), c.weight(ty), c.weight(1 - ty), c.weight(2 - ty)}

	var sum float64
	for j := 0; j < 4; j++ {
		var row float64
		for i := 0; i < 4; i++ {
			row += wx[i] * float64(src.Clamped(x0-1+i, y0-1+j))
		}
		sum += wy[j] * row
	}

	return float32(sum)
}

func mitchell(b, c float64) func(float64) float64 {
	p := 2 - 1.5*b - c
	q := -3 + 2*b + c
	s := 1 - b/3
	t := -b/6 - c
	u := b + 5*c
	v := -2*b - 8*c
	w := 4.0/3*b + 4*c

	return func(d float64) float64 {
		d = math.Abs(d)
		switch {
		case d < 1:
			return p*d*d*d + q*d*d + s
		case d < 2:
			return t*d*d*d + u*d*d + v*d + w
		}
		return 0
	}
}

func keys(a float64) func(float64) float64 {
	return func(d float64) float64 {
		d = math.Abs(d)
		switch {
		case d < 1:
			return (a+2)*d*d*d - (a+3)*d*d + 1
		case d < 2:
			return a*d*d*d - 5*a*d*d + 8*a*d - 4*a
		}
		return 0
	}
}

// ParseKernel returns the kernel for an interpolation name
func ParseKernel(name string, scale float64) (Kernel, error) {
	switch name {
	case "bilinear":
		return Bilinear{}, nil
	case "bicubic", "":
		return Bicubic(), nil
	case "catmullrom":
		return CatmullRom(scale), nil
	}
	return nil, fmt.Errorf("unknown interpolation %q", name)
}
