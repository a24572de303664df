package main

import (
	"context"

	"github.com/gruppe-adler/meh-heightmap/internal/pipeline"
	"github.com/gruppe-adler/meh-heightmap/internal/preview"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render preview images of a heightmap without encoding it",
	Long: `Generate a heightmap in preview mode and write it as preview images in
several sizes together with snapshots of the water masks.

Example:
  meh-heightmap preview --settings settings.json --resolution 512`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, pipeline.ModePreview, true, func(ctx context.Context, cfg Config, res pipeline.Result) ([]string, error) {
			files, err := preview.Write(ctx, cfg.Output, "preview", preview.Heightmap(res.Heightmap, res.Stats))
			if err != nil {
				return nil, err
			}

			masks, err := writeMasks(cfg.Output, res)
			if err != nil {
				return nil, err
			}
			return append(files, masks...), nil
		})
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
}
