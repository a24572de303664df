// Package preview renders heightmaps and water masks into viewable images
// and writes them in several preview sizes.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path"
	"runtime"

	"github.com/gruppe-adler/meh-heightmap/internal/combine"
	"github.com/gruppe-adler/meh-heightmap/internal/grid"
	"github.com/gruppe-adler/meh-heightmap/internal/utils"
	"github.com/nfnt/resize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Sizes are the heights of the scaled preview images
var Sizes = []uint{128, 256, 512, 1024}

// ErrNoDirectory is returned when the output directory does not exist
var ErrNoDirectory = errors.New("output directory doesn't exist")

// Heightmap renders g stretched over the full 16 bit range between the
// extremes of stats
func Heightmap(g grid.Grid, stats combine.Stats) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, g.Size, g.Size))

	r := stats.Range()
	for i, v := range g.Data {
		var u float64
		if r > 0 {
			u = math.Round(float64((v-stats.Min)/r) * math.MaxUint16)
			u = math.Min(math.Max(u, 0), math.MaxUint16)
		}

		y := uint16(u)
		img.Pix[2*i] = uint8(y >> 8)
		img.Pix[2*i+1] = uint8(y)
	}

	return img
}

// Write saves img as name.png and a scaled copy name_<size>.png per Sizes
// into outputDirectory. The written file names are returned.
func Write(ctx context.Context, outputDirectory, name string, img image.Image) ([]string, error) {
	if !utils.IsDirectory(outputDirectory) {
		return nil, fmt.Errorf("%s: %w", outputDirectory, ErrNoDirectory)
	}

	files := make([]string, len(Sizes)+1)
	files[0] = name + ".png"
	if err := saveImage(path.Join(outputDirectory, files[0]), img); err != nil {
		return nil, err
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	sem := semaphore.NewWeighted(int64(runtime.NumCPU()))

	g, gctx := errgroup.WithContext(ctx)
	for i, size := range Sizes {
		i, size := i, size
		files[i+1] = fmt.Sprintf("%s_%d.png", name, size)

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			factor := float64(size) / float64(h)
			scaled := resize.Resize(uint(float64(w)*factor), size, img, resize.MitchellNetravali)

			return saveImage(path.Join(outputDirectory, files[i+1]), scaled)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return files, nil
}

// Snapshot saves img unscaled as name.png
func Snapshot(outputDirectory, name string, img image.Image) (string, error) {
	file := name + ".png"
	return file, saveImage(path.Join(outputDirectory, file), img)
}

func saveImage(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
