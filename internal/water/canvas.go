package water

import (
	"image"
	"math"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
	"github.com/paulmach/orb"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// canvas paints shapes given in output pixel space onto a mask grid. Cell
// x, y of the grid is the pixel centered on position x, y.
type canvas struct {
	g grid.Grid
}

// coverage rasterizes the closed paths into an alpha mask covering their
// bounding box, clipped to the canvas. All paths are accumulated into one
// mask, so overlapping paths must share their winding.
func (c canvas) coverage(paths [][]orb.Point) (*image.Alpha, image.Rectangle, bool) {
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, p := range paths {
		for _, pt := range p {
			b = b.Extend(pt)
		}
	}

	r := image.Rect(
		int(math.Floor(b.Min[0]))-1, int(math.Floor(b.Min[1]))-1,
		int(math.Ceil(b.Max[0]))+2, int(math.Ceil(b.Max[1]))+2,
	).Intersect(image.Rect(0, 0, c.g.Size, c.g.Size))
	if r.Empty() {
		return nil, r, false
	}

	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.DrawOp = draw.Src

	// shift by half a pixel so cell centers sit on integer positions
	ox := float64(r.Min.X) - 0.5
	oy := float64(r.Min.Y) - 0.5
	for _, p := range paths {
		if len(p) < 3 {
			continue
		}
		z.MoveTo(float32(p[0][0]-ox), float32(p[0][1]-oy))
		for _, pt := range p[1:] {
			z.LineTo(float32(pt[0]-ox), float32(pt[1]-oy))
		}
		z.ClosePath()
	}

	mask := image.NewAlpha(image.Rect(0, 0, r.Dx(), r.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	return mask, r, true
}

// fill composites value over the canvas where the paths cover it
func (c canvas) fill(paths [][]orb.Point, value float32) {
	mask, r, ok := c.coverage(paths)
	if !ok {
		return
	}

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			a := float32(mask.Pix[(y-r.Min.Y)*mask.Stride+x-r.Min.X]) / 255
			if a == 0 {
				continue
			}
			i := y*c.g.Size + x
			c.g.Data[i] = c.g.Data[i]*(1-a) + value*a
		}
	}
}

// darken keeps the darker of the canvas and value where the paths cover it
func (c canvas) darken(paths [][]orb.Point, value float32) {
	mask, r, ok := c.coverage(paths)
	if !ok {
		return
	}

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			a := float32(mask.Pix[(y-r.Min.Y)*mask.Stride+x-r.Min.X]) / 255
			if a == 0 {
				continue
			}
			i := y*c.g.Size + x
			dark := c.g.Data[i]
			if value < dark {
				dark = value
			}
			c.g.Data[i] = c.g.Data[i]*(1-a) + dark*a
		}
	}
}

// slope lightens the canvas with the ramp value of the distance to the
// segment a-b.
func (c canvas) slope(a, b orb.Point, ramp SlopeRamp) {
	w := ramp.Width
	x0 := clampInt(int(math.Floor(math.Min(a[0], b[0])-w)), 0, c.g.Size)
	x1 := clampInt(int(math.Ceil(math.Max(a[0], b[0])+w))+1, 0, c.g.Size)
	y0 := clampInt(int(math.Floor(math.Min(a[1], b[1])-w)), 0, c.g.Size)
	y1 := clampInt(int(math.Ceil(math.Max(a[1], b[1])+w))+1, 0, c.g.Size)

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			d := segmentDistance(orb.Point{float64(x), float64(y)}, a, b)
			if d >= w {
				continue
			}
			v := float32(ramp.At(d))
			i := y*c.g.Size + x
			if v > c.g.Data[i] {
				c.g.Data[i] = v
			}
		}
	}
}

// gray renders the canvas as an 8 bit image
func (c canvas) gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, c.g.Size, c.g.Size))
	for i, v := range c.g.Data {
		img.Pix[i] = uint8(math.Round(float64(clampUnit(v)) * 255))
	}
	return img
}

// stroke returns the outline of a line of width w as one quad per segment
// and one disc per vertex. Every shape winds the same way.
func stroke(line []orb.Point, w float64) [][]orb.Point {
	hw := w / 2
	var paths [][]orb.Point

	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		dx, dy := b[0]-a[0], b[1]-a[1]
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw
		paths = append(paths, []orb.Point{
			{a[0] + nx, a[1] + ny},
			{b[0] + nx, b[1] + ny},
			{b[0] - nx, b[1] - ny},
			{a[0] - nx, a[1] - ny},
		})
	}

	for _, p := range line {
		paths = append(paths, disc(p, hw))
	}

	return paths
}

func disc(c orb.Point, r float64) []orb.Point {
	n := int(math.Ceil(2 * math.Pi * r))
	if n < 8 {
		n = 8
	}
	if n > 64 {
		n = 64
	}

	pts := make([]orb.Point, n)
	for k := range pts {
		a := -2 * math.Pi * float64(k) / float64(n)
		pts[k] = orb.Point{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)}
	}
	return pts
}

func segmentDistance(p, a, b orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1])
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p[0]-(a[0]+t*dx), p[1]-(a[1]+t*dy))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
