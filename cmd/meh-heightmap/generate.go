package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"time"

	"github.com/gruppe-adler/meh-heightmap/internal/pipeline"
	"github.com/gruppe-adler/meh-heightmap/internal/preview"
	"github.com/gruppe-adler/meh-heightmap/internal/sidecar"
	"github.com/gruppe-adler/meh-heightmap/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and write a 16 bit heightmap",
	Long: `Generate a heightmap and write it as heightmap.png together with a
heightmap.json describing the run. cs2 maps additionally get a worldmap.png.

Examples:
  meh-heightmap generate --settings settings.json --out ./map
  meh-heightmap generate --lng 11.39 --lat 47.27 --grid unity --token pk.xxx --previews`,
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		previews, _ := cmd.Flags().GetBool("previews")

		return execute(cmd, pipeline.ModeDownload, debug, func(ctx context.Context, cfg Config, res pipeline.Result) ([]string, error) {
			files := []string{"heightmap.png"}
			if err := os.WriteFile(path.Join(cfg.Output, files[0]), res.PNG, 0o644); err != nil {
				return nil, err
			}

			if res.WorldMapPNG != nil {
				files = append(files, "worldmap.png")
				if err := os.WriteFile(path.Join(cfg.Output, "worldmap.png"), res.WorldMapPNG, 0o644); err != nil {
					return nil, err
				}
			}

			if debug {
				masks, err := writeMasks(cfg.Output, res)
				if err != nil {
					return nil, err
				}
				files = append(files, masks...)
			}

			if previews {
				written, err := preview.Write(ctx, cfg.Output, "preview", preview.Heightmap(res.Heightmap, res.Stats))
				if err != nil {
					return nil, err
				}
				files = append(files, written...)
			}

			resolution := res.Heightmap.Size
			if err := sidecar.Write(cfg.Output, sidecar.New(cfg.Settings, resolution, res, files)); err != nil {
				return nil, err
			}
			return append(files, sidecar.FileName), nil
		})
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().Bool("debug", false, "Also write the water and waterway masks")
	generateCmd.Flags().Bool("previews", false, "Also write scaled preview images")
}

// output writes the results of a run and returns the written files
type output func(ctx context.Context, cfg Config, res pipeline.Result) ([]string, error)

// execute runs the pipeline in mode with progress output and hands the
// result to write
func execute(cmd *cobra.Command, mode pipeline.Mode, debug bool, write output) error {
	start := time.Now()

	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	if !utils.IsDirectory(cfg.Output) {
		return fmt.Errorf("output directory %s doesn't exist", cfg.Output)
	}

	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	g := cfg.CreateGenerator(log)
	defer g.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	events := make(chan pipeline.Event)
	done := make(chan struct{})
	go printProgress(events, done)

	res, err := g.Run(ctx, cfg.Settings, pipeline.Options{Mode: mode, Debug: debug}, events)
	<-done
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}

	fmt.Printf("ℹ️  Elevation %.1fm to %.1fm, zoom %d, %d tiles\n", res.Stats.Min, res.Stats.Max, res.Zoom, res.TileCount)

	timer := time.Now()
	fmt.Println("▶️  Writing output")
	files, err := write(ctx, cfg, res)
	if err != nil {
		return err
	}
	fmt.Printf("✔️  Wrote %d files in %s\n", len(files), time.Since(timer).String())

	fmt.Printf("\n    🎉  Finished in %s\n", time.Since(start).String())
	return nil
}

// writeMasks saves the debug images of the water masks
func writeMasks(outputDirectory string, res pipeline.Result) ([]string, error) {
	var files []string
	if res.WaterImage != nil {
		f, err := preview.Snapshot(outputDirectory, "water", res.WaterImage)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if res.WaterwayImage != nil {
		f, err := preview.Snapshot(outputDirectory, "waterway", res.WaterwayImage)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, nil
}
