package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/4thel00z/angular/internal"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "angular",
		Short:         "Build and query angular nearest neighbor indexes",
		Long:          `Build approximate nearest neighbor indexes over float vectors, save them to disk and query them by item or by vector.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	addSubcommands(rootCmd)

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", internal.DefaultConfigFilename, "Config file")
	cmd.PersistentFlags().IntP("dimension", "d", 0, "Vector dimension (overrides index.dimension)")
	cmd.PersistentFlags().Bool("verbose", false, "Debug logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command) {
	root.AddCommand(
		NewBuildCmd(),
		NewQueryCmd(),
		NewItemCmd(),
		NewDistanceCmd(),
		NewInfoCmd(),
		NewServeCmd(),
	)
}

// loadConfig reads --config and applies --dimension on top of it.
func loadConfig(cmd *cobra.Command) (*internal.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg := internal.DefaultConfig()
	if path != "" {
		loaded, err := internal.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("dimension") {
		cfg.Index.Dimension, _ = cmd.Flags().GetInt("dimension")
	}
	if cfg.Index.Dimension <= 0 {
		return nil, errors.New("dimension is required: pass --dimension or set index.dimension in the config")
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return internal.NewLogger(cmd.ErrOrStderr(), verbose)
}

// intFlag returns the flag value when set on the command line, else fallback.
func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	v, _ := cmd.Flags().GetInt(name)
	return v
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return uint32(id), nil
}

func outputJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
