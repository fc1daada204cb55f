// Package main provides fileconvctl, which runs the conversion pipeline and
// the retention sweeper against local files.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/local/fileconv/internal/config"
	logpkg "github.com/local/fileconv/internal/logger"
	"github.com/local/fileconv/internal/storage"
)

var (
	cfgFile    string
	outputJSON bool
	verbose    bool

	cfg  config.Config
	area *storage.Area
)

var rootCmd = &cobra.Command{
	Use:   "fileconvctl",
	Short: "Run fileconv conversions and retention sweeps from the command line",
	Long: `fileconvctl drives the same pipeline as the HTTP service, against local files.

Results are written to the configured processed directory and are subject to
the same retention window as uploads made over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is fine; the environment may already be set
		_ = godotenv.Load()
		if cfgFile != "" {
			if err := os.Setenv("CONFIG_FILE", cfgFile); err != nil {
				return err
			}
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		opts := logpkg.OptionsFrom(cfg)
		if verbose {
			opts.Level = "debug"
		}
		if err := logpkg.Init(opts); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		area, err = storage.New(cfg.Storage)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logpkg.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (default: environment only)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newResizeCmd())
	rootCmd.AddCommand(newPDFToImageCmd())
	rootCmd.AddCommand(newImageToPDFCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
