package combine

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/gruppe-adler/meh-heightmap/internal/grid"
)

// ScaleMode selects how the vertical scale of the output is resolved
type ScaleMode string

const (
	// ScaleManual keeps the configured vertical scale
	ScaleManual ScaleMode = "manual"
	// ScaleLimit shrinks the elevation range to the elevation scale if it
	// would not fit
	ScaleLimit ScaleMode = "limit"
	// ScaleMaximize stretches the elevation range to the elevation scale
	ScaleMaximize ScaleMode = "maximize"
)

// ParseScaleMode validates a scale mode name
func ParseScaleMode(s string) (ScaleMode, error) {
	switch m := ScaleMode(s); m {
	case ScaleManual, ScaleLimit, ScaleMaximize:
		return m, nil
	case "":
		return ScaleManual, nil
	}
	return "", fmt.Errorf("unknown scale mode %q", s)
}

// ScaleFactor returns the factor applied on top of the heights produced by
// Combine, which already carry the manual vertical scale
func ScaleFactor(mode ScaleMode, s Stats, base, elevationScale float32) float32 {
	r := s.Max - base
	if r <= 0 {
		return 1
	}

	switch mode {
	case ScaleLimit:
		if r > elevationScale {
			return elevationScale / r
		}
	case ScaleMaximize:
		return elevationScale / r
	}

	return 1
}

// Quantize converts heights to 16 bit units of unitScale meters above base
func Quantize(g grid.Grid, base, factor, unitScale float32) []uint16 {
	q := make([]uint16, len(g.Data))
	for i, v := range g.Data {
		u := math.Round(float64((v - base) * factor / unitScale))
		if u < 0 {
			u = 0
		}
		if u > math.MaxUint16 {
			u = math.MaxUint16
		}
		q[i] = uint16(u)
	}
	return q
}

// Image wraps quantized heights into a 16 bit grayscale image
func Image(q []uint16, size int) (*image.Gray16, error) {
	if len(q) != size*size {
		return nil, fmt.Errorf("combine: %d values do not form a %dx%d image", len(q), size, size)
	}

	img := image.NewGray16(image.Rect(0, 0, size, size))
	for i, v := range q {
		// big endian
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}

	return img, nil
}

// EncodePNG writes quantized heights as a 16 bit grayscale png
func EncodePNG(w io.Writer, q []uint16, size int) error {
	img, err := Image(q, size)
	if err != nil {
		return err
	}

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

// Raw returns quantized heights as big endian 16 bit values
func Raw(q []uint16) []byte {
	b := make([]byte, 2*len(q))
	for i, v := range q {
		b[2*i] = uint8(v >> 8)
		b[2*i+1] = uint8(v)
	}
	return b
}
