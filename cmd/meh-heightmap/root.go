package main

import (
	"os"

	"github.com/gruppe-adler/meh-heightmap/internal/fetch"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "meh-heightmap",
	Short: "Generate game heightmaps from real world elevation data",
	Long: `meh-heightmap generates heightmaps for Cities: Skylines, Unity and
Unreal Engine from Mapbox or MapTiler elevation and vector tiles.

Settings are read from a settings file exported by the web application and
can be overridden with flags or MEH_HEIGHTMAP_* environment variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
}

// addGlobalFlags registers the flags shared by all subcommands
func addGlobalFlags(f *pflag.FlagSet) {
	f.StringP("settings", "s", "", "Path to a settings json file")
	f.StringP("out", "o", ".", "Path to output directory")
	f.BoolP("verbose", "v", false, "Log debug output")

	f.Float64("lng", 0, "Longitude of the map center")
	f.Float64("lat", 0, "Latitude of the map center")
	f.Float64("size", 0, "Map size in km")
	f.Float64("angle", 0, "Map rotation in degrees")
	f.IntP("resolution", "r", 0, "Output resolution in pixels")
	f.String("grid", "", "Target format: cs1, cs2, cs2play, unity or ue")
	f.String("provider", "", "Tile provider: mapbox or maptiler")
	f.String("token", "", "Mapbox access token")
	f.String("token-mt", "", "MapTiler api key")
	f.Bool("seafloor", false, "Use the actual seafloor depth instead of a flat sea")

	f.Int("workers", 0, "Number of decoder workers (default number of CPUs)")
	f.Int64("cache-size", 0, "Number of tiles kept in memory")
	f.Int("retries", fetch.DefaultMaxRetries, "Retries per tile after rate limit and server errors")
	f.Int("minmax-stride", 1, "Sample every n-th cell for the elevation statistics")
}
