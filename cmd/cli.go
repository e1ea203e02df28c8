// SPDX-License-Identifier: MIT

// Package cmd implements the command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"beamform/internal/beamformer"
	"beamform/internal/config"
	applog "beamform/internal/log"
	"beamform/pkg/build"

	"github.com/spf13/cobra"
)

var logger = applog.Component("cli")

// options holds flag values that override the loaded configuration.
type options struct {
	configPath string
	logLevel   string
	workers    int
	debug      bool

	formulation string
	eigen       bool
	eigenCount  int
	removedDiag bool
	frequency   float64
	band        int
	udp         bool
	websocket   bool

	samples int
}

// Execute parses os.Args and runs the selected command. ctx is cancelled on
// interrupt.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	root.SetArgs(os.Args[1:])
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	buildInfo := build.Get()
	opts := &options{}
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd, opts)
			return err
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Map command
	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Simulate a source and compute its beamforming map",
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := ComputeMap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return Publish(cmd.Context(), cfg, frame)
		},
	}
	mapCmd.Flags().StringVarP(&opts.formulation, "formulation", "f", config.DefaultFormulation,
		"Steering vector formulation: classic, inverse, true-level, true-location or specific")
	mapCmd.Flags().BoolVarP(&opts.eigen, "eigen", "e", false,
		"Evaluate from the eigendecomposition of the CSM")
	mapCmd.Flags().IntVarP(&opts.eigenCount, "eigen-count", "n", 0,
		"Number of largest eigenpairs to keep, 0 for all")
	mapCmd.Flags().BoolVarP(&opts.removedDiag, "removed-diag", "r", false,
		"Remove the CSM diagonal")
	mapCmd.Flags().Float64Var(&opts.frequency, "frequency", config.DefaultFrequency,
		"Frequency in Hz, 0 for every bin of the spectra band")
	mapCmd.Flags().IntVarP(&opts.band, "band", "b", 0,
		"Sum the 1/n octave band around --frequency (1 octave, 3 third octave), 0 for one bin")
	mapCmd.Flags().BoolVar(&opts.udp, "udp", false,
		"Publish the map over UDP until interrupted")
	mapCmd.Flags().BoolVar(&opts.websocket, "websocket", false,
		"Serve the map to WebSocket clients until interrupted")
	rootCmd.AddCommand(mapCmd)

	// Variants command
	variantsCmd := &cobra.Command{
		Use:   "variants",
		Short: "List the available beamformer variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, v := range beamformer.Variants() {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
	rootCmd.AddCommand(variantsCmd)

	// Trace command
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the emission times of the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Trace(cmd.OutOrStdout(), cfg, opts.samples)
		},
	}
	traceCmd.Flags().IntVarP(&opts.samples, "samples", "s", 10,
		"Number of receiving samples to solve")
	rootCmd.AddCommand(traceCmd)

	// Configuration
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to the YAML configuration. Defaults to ./config.yaml when present")
	rootCmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().IntVarP(&opts.workers, "workers", "w", config.DefaultWorkers,
		"Goroutine limit for the kernels, 0 for GOMAXPROCS")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "verbose", "v", false,
		"Show verbose output")

	return rootCmd
}

// loadConfig reads the configuration and applies every flag the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("verbose") {
		cfg.Debug = opts.debug
	}
	if flags.Changed("formulation") {
		cfg.Beamforming.Formulation = opts.formulation
	}
	if flags.Changed("eigen") {
		cfg.Beamforming.Eigen = opts.eigen
	}
	if flags.Changed("eigen-count") {
		cfg.Beamforming.EigenCount = opts.eigenCount
	}
	if flags.Changed("removed-diag") {
		cfg.Beamforming.RemovedDiagonal = opts.removedDiag
	}
	if flags.Changed("frequency") {
		cfg.Beamforming.Frequency = opts.frequency
	}
	if flags.Changed("band") {
		cfg.Beamforming.BandFraction = opts.band
	}
	if flags.Changed("udp") {
		cfg.Transport.UDPEnabled = opts.udp
	}
	if flags.Changed("websocket") {
		cfg.Transport.WebSocketEnabled = opts.websocket
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applog.SetLevel(cfg.Level())
	logger.Debugf("configuration loaded (variant %v)", cfg.Variant())
	return cfg, nil
}
