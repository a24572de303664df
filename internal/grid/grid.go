package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotSquare is returned when a buffer length is no perfect square
var ErrNotSquare = errors.New("grid: buffer length is not a perfect square")

// Grid is a square, row-major float32 raster. It is used for elevations in
// meters as well as for [0,1] masks.
type Grid struct {
	Size int
	Data []float32
}

// New allocates a zeroed grid with size*size cells
func New(size int) Grid {
	return Grid{Size: size, Data: make([]float32, size*size)}
}

// Filled allocates a grid with every cell set to v
func Filled(size int, v float32) Grid {
	g := New(size)
	g.Fill(v)
	return g
}

// FromSlice wraps data, which must have a perfect square length
func FromSlice(data []float32) (Grid, error) {
	size := int(math.Sqrt(float64(len(data))))
	if size*size != len(data) {
		return Grid{}, fmt.Errorf("%w: %d", ErrNotSquare, len(data))
	}
	return Grid{Size: size, Data: data}, nil
}

// Fill sets every cell to v
func (g Grid) Fill(v float32) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// At returns the cell at x, y
func (g Grid) At(x, y int) float32 {
	return g.Data[y*g.Size+x]
}

// Set sets the cell at x, y
func (g Grid) Set(x, y int, v float32) {
	g.Data[y*g.Size+x] = v
}

// Clamped returns the cell at x, y with the coordinates clamped to the grid,
// so reads beyond the border repeat the edge.
func (g Grid) Clamped(x, y int) float32 {
	return g.Data[clamp(y, g.Size)*g.Size+clamp(x, g.Size)]
}

// Clone returns a deep copy
func (g Grid) Clone() Grid {
	data := make([]float32, len(g.Data))
	copy(data, g.Data)
	return Grid{Size: g.Size, Data: data}
}

// Crop copies the size*size window starting at x, y. Parts of the window
// outside of g are filled by edge extension.
func (g Grid) Crop(x, y, size int) Grid {
	out := New(size)
	for row := 0; row < size; row++ {
		sy := y + row
		if sy >= 0 && sy < g.Size && x >= 0 && x+size <= g.Size {
			copy(out.Data[row*size:(row+1)*size], g.Data[sy*g.Size+x:sy*g.Size+x+size])
			continue
		}
		for col := 0; col < size; col++ {
			out.Data[row*size+col] = g.Clamped(x+col, sy)
		}
	}
	return out
}

// Paste copies src into g with its top left corner at x, y. Cells of src
// falling outside of g are dropped.
func (g Grid) Paste(src Grid, x, y int) {
	for row := 0; row < src.Size; row++ {
		dy := y + row
		if dy < 0 || dy >= g.Size {
			continue
		}
		x0, x1 := 0, src.Size
		if x < 0 {
			x0 = -x
		}
		if x+x1 > g.Size {
			x1 = g.Size - x
		}
		if x0 >= x1 {
			continue
		}
		copy(g.Data[dy*g.Size+x+x0:dy*g.Size+x+x1], src.Data[row*src.Size+x0:row*src.Size+x1])
	}
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
