package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lamntk20699/nft-music-marketplace/internal/logging"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/config"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "marketctl",
		Short: "Music marketplace command line tool",
		Long: `Music marketplace command line tool.

Publishes tracks, inspects the listing and works with asset URIs and
gateway URLs. Configuration is read from the same environment variables
as marketd (DATABASE_URL, STORAGE_URL, GATEWAY, ...) and from a .env file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			_, err := logging.Setup(logging.Config{Level: level, Stdout: cmd.ErrOrStderr()})
			return err
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewPublishCommand())
	rootCmd.AddCommand(NewMarketCommand())
	rootCmd.AddCommand(NewResolveCommand())
	rootCmd.AddCommand(NewArtistCommand())
	rootCmd.AddCommand(NewGatewayURLCommand())
	rootCmd.AddCommand(NewAssetURICommand())
	rootCmd.AddCommand(NewDecodeCIDCommand())
	rootCmd.AddCommand(NewCIDCommand())
	rootCmd.AddCommand(NewMigrateCommand())

	return rootCmd
}

// loadConfig reads the environment configuration
func loadConfig() (*config.ServerConfig, error) {
	cfg, err := config.Load(config.WithEnv(""))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// buildApp creates the marketplace app described by the environment
func buildApp(ctx context.Context) (*musicmarket.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg.BuildApp(ctx, musicmarket.NewLoggingEventSink(slog.Default()))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
