// Package combine merges the effected elevation with water masks and noise
// and quantizes the result to 16 bit.
package combine

import (
	"math"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
)

// Inputs are the grids of one (sub) map. Noise, Water and Waterway may have
// size 0, meaning no noise and no water.
type Inputs struct {
	Effected grid.Grid
	Noise    grid.Grid
	Water    grid.Grid
	Waterway grid.Grid
}

// Params configure Combine
type Params struct {
	SeaLevel    float32
	VertScale   float32
	Depth       float32
	StreamDepth float32
}

// Combine calculates the final heights. Elevation below the sea level is cut
// off, water areas are carved Depth meters deep and streams
// min(Depth, StreamDepth) meters. Noise is only added where neither water nor
// a waterway is present.
func Combine(in Inputs, p Params) grid.Grid {
	out := grid.New(in.Effected.Size)
	stream := p.StreamDepth
	if p.Depth < stream {
		stream = p.Depth
	}

	for i, v := range in.Effected.Data {
		water, waterway := float32(1), float32(1)
		if in.Water.Size > 0 {
			water = in.Water.Data[i]
		}
		if in.Waterway.Size > 0 {
			waterway = in.Waterway.Data[i]
		}

		h := v - p.SeaLevel
		if h < 0 {
			h = 0
		}

		carve := (1 - water) * p.Depth
		if c := (1 - waterway) * stream; c > carve {
			carve = c
		}

		h = h*p.VertScale + p.Depth - carve

		if in.Noise.Size > 0 && water*waterway == 1 {
			h += in.Noise.Data[i]
		}

		out.Data[i] = h
	}

	return out
}

// Stats are the elevation extremes of a map
type Stats struct {
	Min float32
	Max float32
}

// Merge returns the extremes of s and o
func (s Stats) Merge(o Stats) Stats {
	return Stats{
		Min: float32(math.Min(float64(s.Min), float64(o.Min))),
		Max: float32(math.Max(float64(s.Max), float64(o.Max))),
	}
}

// Range returns Max - Min
func (s Stats) Range() float32 {
	return s.Max - s.Min
}

// MinMax returns the extremes of g ignoring a border of border cells. With a
// stride > 1 only every stride-th cell of the scanned area is sampled.
func MinMax(g grid.Grid, border, stride int) Stats {
	if stride < 1 {
		stride = 1
	}

	s := Stats{Min: math.MaxFloat32, Max: -math.MaxFloat32}
	end := g.Size - border
	n := 0
	for y := border; y < end; y++ {
		row := g.Data[y*g.Size : (y+1)*g.Size]
		for x := border; x < end; x++ {
			if n%stride == 0 {
				v := row[x]
				if v < s.Min {
					s.Min = v
				}
				if v > s.Max {
					s.Max = v
				}
			}
			n++
		}
	}

	if n == 0 {
		return Stats{}
	}

	return s
}
