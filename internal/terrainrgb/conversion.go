package terrainrgb

import (
	"image"
	"image/color"
	"image/draw"
)

/*
	Terrain-RGB tiles use the following equation to decode height values from rgb.

	height = -10000 + ((R * 256 * 256 + G * 256 + B) * 0.1)

	To make things easier we'll replace (R * 256 * 256 + G * 256 + B) with x to get the following equation:
	height = -10000 + (x * 0.1)
	now we can solve the equation for x and get:
	x = 10 * height + 100000

	To get the r, g and b value from x we'll convert x to a Base256 number.
	Position 2 will be r, position 1 will be g and position 0 will be b.
*/

const maxX = 256*256*256 - 1

// SeaLevel is the color encoding a height of 0m
var SeaLevel = HeightToRgb(0)

// HeightToRgb calculates rgb values from height. Heights outside of the
// encodable range are clamped.
func HeightToRgb(height float64) color.RGBA {
	x := int64(10*height + 100000)
	if x < 0 {
		x = 0
	}
	if x > maxX {
		x = maxX
	}

	return color.RGBA{
		R: uint8(x >> 16),
		G: uint8(x >> 8),
		B: uint8(x),
		A: 255,
	}
}

// RgbToHeight calculates height from given rgb values
func RgbToHeight(c color.RGBA) float64 {
	return -10000 + float64(c.R)*6553.6 + float64(c.G)*25.6 + float64(c.B)*0.1
}

// DecodeImage decodes every pixel of img into heights. The result is row-major
// with the dimensions of img.
func DecodeImage(img image.Image) []float32 {
	rgba := toRGBA(img)
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()

	heights := make([]float32, w*h)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			heights[y*w+x] = float32(-10000 + float64(p[0])*6553.6 + float64(p[1])*25.6 + float64(p[2])*0.1)
		}
	}

	return heights
}

// EncodeImage encodes a row-major height buffer of size w*h into a
// Terrain-RGB image
func EncodeImage(heights []float32, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, HeightToRgb(float64(heights[y*w+x])))
		}
	}
	return img
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}

	// webp decodes to YCbCr / NRGBA, png to NRGBA or RGBA
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
