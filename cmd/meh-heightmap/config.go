package main

import (
	"os"
	"strconv"

	"github.com/gruppe-adler/meh-heightmap/internal/fetch"
	"github.com/gruppe-adler/meh-heightmap/internal/pipeline"
	"github.com/gruppe-adler/meh-heightmap/internal/settings"
	"github.com/gruppe-adler/meh-heightmap/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const envPrefix = "MEH_HEIGHTMAP_"

// Config holds the command configuration
type Config struct {
	Output       string
	Verbose      bool
	Workers      int
	CacheSize    int64
	Retries      int
	MinMaxStride int

	Settings settings.Settings
}

// LoadConfig loads configuration from the settings file, environment
// variables and command flags. Flags take precedence over environment
// variables, which take precedence over the settings file.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	cfg := Config{}

	s := settings.Default()
	if p := getConfigString(cmd, "settings", envPrefix+"SETTINGS", ""); p != "" {
		if !utils.IsFile(p) {
			return cfg, &os.PathError{Op: "open", Path: p, Err: os.ErrNotExist}
		}

		var err error
		if s, err = settings.Read(p); err != nil {
			return cfg, err
		}
	}

	s.Lng = getConfigFloat(cmd, "lng", envPrefix+"LNG", s.Lng)
	s.Lat = getConfigFloat(cmd, "lat", envPrefix+"LAT", s.Lat)
	s.Size = getConfigFloat(cmd, "size", envPrefix+"SIZE", s.Size)
	s.Angle = getConfigFloat(cmd, "angle", envPrefix+"ANGLE", s.Angle)
	s.Resolution = getConfigInt(cmd, "resolution", envPrefix+"RESOLUTION", s.Resolution)
	s.GridInfo = settings.GridInfo(getConfigString(cmd, "grid", envPrefix+"GRID", string(s.GridInfo)))
	s.Provider = getConfigString(cmd, "provider", envPrefix+"PROVIDER", s.Provider)
	s.AccessToken = getConfigString(cmd, "token", envPrefix+"TOKEN", s.AccessToken)
	s.AccessTokenMT = getConfigString(cmd, "token-mt", envPrefix+"TOKEN_MT", s.AccessTokenMT)
	s.ActualSeafloor = getConfigBool(cmd, "seafloor", envPrefix+"SEAFLOOR", s.ActualSeafloor)
	cfg.Settings = s

	cfg.Output = getConfigString(cmd, "out", envPrefix+"OUT", ".")
	cfg.Verbose = getConfigBool(cmd, "verbose", envPrefix+"VERBOSE", false)
	cfg.Workers = getConfigInt(cmd, "workers", envPrefix+"WORKERS", 0)
	cfg.CacheSize = int64(getConfigInt(cmd, "cache-size", envPrefix+"CACHE_SIZE", 0))
	cfg.Retries = getConfigInt(cmd, "retries", envPrefix+"RETRIES", fetch.DefaultMaxRetries)
	cfg.MinMaxStride = getConfigInt(cmd, "minmax-stride", envPrefix+"MINMAX_STRIDE", 1)

	return cfg, nil
}

// Logger builds a development logger in verbose mode and a production
// logger otherwise
func (c *Config) Logger() (*zap.Logger, error) {
	if c.Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// CreateGenerator creates a pipeline generator from the configuration
func (c *Config) CreateGenerator(log *zap.Logger) *pipeline.Generator {
	retries := uint64(fetch.DefaultMaxRetries)
	if c.Retries > 0 {
		retries = uint64(c.Retries)
	}

	return pipeline.New(pipeline.Config{
		Logger:       log,
		CacheSize:    c.CacheSize,
		MaxRetries:   retries,
		Workers:      c.Workers,
		MinMaxStride: c.MinMaxStride,
	})
}

// getConfigString gets a string value from flag, then env, then default
func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetString(flagName)
		return val
	}

	if v := os.Getenv(envName); v != "" {
		return v
	}

	return defaultValue
}

// getConfigInt gets an int value from flag, then env, then default
func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	if cmd.Flags().Changed(flagName) {
		if val, err := cmd.Flags().GetInt(flagName); err == nil {
			return val
		}
		if val, err := cmd.Flags().GetInt64(flagName); err == nil {
			return int(val)
		}
	}

	if v := os.Getenv(envName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return defaultValue
}

// getConfigFloat gets a float64 value from flag, then env, then default
func getConfigFloat(cmd *cobra.Command, flagName, envName string, defaultValue float64) float64 {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetFloat64(flagName)
		return val
	}

	if v := os.Getenv(envName); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	return defaultValue
}

// getConfigBool gets a bool value from flag, then env, then default
func getConfigBool(cmd *cobra.Command, flagName, envName string, defaultValue bool) bool {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetBool(flagName)
		return val
	}

	if v := os.Getenv(envName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	return defaultValue
}
