package main

import (
	"fmt"

	"github.com/gruppe-adler/meh-heightmap/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the extent, zoom and tile count of a map without fetching",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cmd)
		if err != nil {
			return err
		}

		g := cfg.CreateGenerator(zap.NewNop())
		defer g.Close()

		p, err := g.Plan(cfg.Settings, pipeline.Options{})
		if err != nil {
			return err
		}

		s := cfg.Settings
		fmt.Printf("Center: %.6f, %.6f\n", s.Lat, s.Lng)
		fmt.Printf("Format: %s, %dpx, %.2fm per pixel\n", s.GridInfo, p.Resolution, p.UnitSize)
		fmt.Printf("Extent: %.6f,%.6f to %.6f,%.6f (world pixels)\n", p.Extent.TopLeft.X, p.Extent.TopLeft.Y, p.Extent.BottomRight.X, p.Extent.BottomRight.Y)
		fmt.Printf("Zoom: %d\n", p.Zoom)
		fmt.Printf("Tiles: %d terrain, %d vector, %d ocean\n", p.TerrainTiles, p.VectorTiles, p.OceanTiles)
		fmt.Printf("Sub tiles: %d\n", p.Divisions*p.Divisions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
