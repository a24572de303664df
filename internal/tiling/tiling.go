// Package tiling splits large grids into padded sub tiles that can be
// processed independently and merges them back.
package tiling

import (
	"fmt"
	"math"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
)

const (
	// Threshold is the resolution above which a map is processed in sub tiles
	Threshold = 8192
	// Padding is the default overlap of sub tiles
	Padding = 100
	// MaxDivisions limits the number of sub tiles per axis
	MaxDivisions = 4
)

// Divisions returns the number of sub tiles per axis for a resolution
func Divisions(resolution int) int {
	if resolution <= Threshold {
		return 1
	}
	n := int(math.Ceil(float64(resolution) / 4000))
	if n > MaxDivisions {
		n = MaxDivisions
	}
	return n
}

// Layout describes how a grid of Size cells is split into Divisions² tiles
// that overlap by 2*Padding cells
type Layout struct {
	Size      int
	Divisions int
	Padding   int

	// Step is the core size of every tile but the last of a row
	Step int
	// Remainder is added to the core of the last tile of a row
	Remainder int
	// TileSize is the size of every tile including padding
	TileSize int
}

// NewLayout validates and calculates a split layout
func NewLayout(size, divisions, padding int) (Layout, error) {
	if divisions < 1 {
		return Layout{}, fmt.Errorf("tiling: invalid number of divisions %d", divisions)
	}

	core := size - 2*padding
	step := core / divisions
	if step < 1 {
		return Layout{}, fmt.Errorf("tiling: %d cells with padding %d cannot be split into %d tiles", size, padding, divisions)
	}
	rem := core - divisions*step

	return Layout{
		Size:      size,
		Divisions: divisions,
		Padding:   padding,
		Step:      step,
		Remainder: rem,
		TileSize:  step + 2*padding + rem,
	}, nil
}

// Origin returns the position of tile i (row-major) in the full grid
func (l Layout) Origin(i int) (x, y int) {
	return (i % l.Divisions) * l.Step, (i / l.Divisions) * l.Step
}

// Split cuts g into divisions² overlapping tiles in row-major order
func Split(g grid.Grid, divisions, padding int) ([]grid.Grid, error) {
	l, err := NewLayout(g.Size, divisions, padding)
	if err != nil {
		return nil, err
	}

	tiles := make([]grid.Grid, divisions*divisions)
	for i := range tiles {
		x, y := l.Origin(i)
		tiles[i] = g.Crop(x, y, l.TileSize)
	}

	return tiles, nil
}

// Merge reassembles tiles produced by Split of a grid of the given size. Only
// the core of every tile is copied, the outer padding of the full grid is
// taken from the border tiles. Seams are not blended.
func Merge(tiles []grid.Grid, size, padding int) (grid.Grid, error) {
	divisions := int(math.Sqrt(float64(len(tiles))))
	if divisions*divisions != len(tiles) || divisions == 0 {
		return grid.Grid{}, fmt.Errorf("tiling: %d tiles do not form a square", len(tiles))
	}

	l, err := NewLayout(size, divisions, padding)
	if err != nil {
		return grid.Grid{}, err
	}

	out := grid.New(size)
	for i, tile := range tiles {
		if tile.Size != l.TileSize {
			return grid.Grid{}, fmt.Errorf("tiling: tile %d has size %d, expected %d", i, tile.Size, l.TileSize)
		}

		col, row := i%divisions, i/divisions
		x0, w := l.span(col)
		y0, h := l.span(row)
		ox, oy := l.Origin(i)

		for y := y0; y < y0+h; y++ {
			dst := (oy+y)*size + ox + x0
			copy(out.Data[dst:dst+w], tile.Data[y*l.TileSize+x0:y*l.TileSize+x0+w])
		}
	}

	return out, nil
}

// span returns the local start and length of the cells tile index i
// contributes along one axis
func (l Layout) span(i int) (start, length int) {
	length = l.Step
	if i == 0 {
		length += l.Padding
	} else {
		start = l.Padding
	}
	if i == l.Divisions-1 {
		length += l.Remainder + l.Padding
	}
	return start, length
}

// Extract copies the size*size window at x, y
func Extract(g grid.Grid, x, y, size int) grid.Grid {
	return g.Crop(x, y, size)
}

// BlendWithFeathering pastes the core of overlay into the center of base. The
// feather cells of overlay's padding around the core fade linearly into base.
// base is modified and returned.
func BlendWithFeathering(base, overlay grid.Grid, padding, feather int) (grid.Grid, error) {
	if feather > padding {
		return grid.Grid{}, fmt.Errorf("tiling: feather %d exceeds padding %d", feather, padding)
	}
	if overlay.Size > base.Size {
		return grid.Grid{}, fmt.Errorf("tiling: overlay of %d does not fit into %d", overlay.Size, base.Size)
	}

	start := (base.Size - overlay.Size) / 2
	coreStart := padding
	coreEnd := overlay.Size - padding

	weight := func(i int) float32 {
		switch {
		case i < coreStart:
			return float32(i-(coreStart-feather)) / float32(feather)
		case i >= coreEnd:
			return float32(coreEnd+feather-i) / float32(feather)
		}
		return 1
	}

	for yB := coreStart - feather; yB < coreEnd+feather; yB++ {
		wy := weight(yB)
		for xB := coreStart - feather; xB < coreEnd+feather; xB++ {
			w := weight(xB)
			if wy < w {
				w = wy
			}

			iA := (start+yB)*base.Size + start + xB
			base.Data[iA] = overlay.Data[yB*overlay.Size+xB]*w + base.Data[iA]*(1-w)
		}
	}

	return base, nil
}

// ScaleDown reduces g by factor, averaging the center cells of every
// factor*factor block
func ScaleDown(g grid.Grid, factor int) (grid.Grid, error) {
	if factor < 1 || g.Size%factor != 0 {
		return grid.Grid{}, fmt.Errorf("tiling: cannot scale %d cells down by %d", g.Size, factor)
	}

	size := g.Size / factor
	lo, hi := (factor-1)/2, factor/2
	n := float32((hi - lo + 1) * (hi - lo + 1))

	out := grid.New(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			var sum float32
			for dy := lo; dy <= hi; dy++ {
				row := (y*factor + dy) * g.Size
				for dx := lo; dx <= hi; dx++ {
					sum += g.Data[row+x*factor+dx]
				}
			}
			out.Data[y*size+x] = sum / n
		}
	}

	return out, nil
}
