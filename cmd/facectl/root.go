package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"facewatch/internal/app"
	"facewatch/internal/config"
	"facewatch/internal/logger"
)

// Version is the application version.
const Version = "0.3.0"

var (
	cfg     *config.Config
	verbose bool
	core    *app.Core
)

var rootCmd = &cobra.Command{
	Use:           "facectl",
	Short:         "Manage the facewatch face gallery, backups and settings",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if core != nil {
			core.Close()
		}
	},
}

// openCore loads the store, settings and model. offsite enables MinIO when configured.
func openCore(ctx context.Context, offsite bool) (*app.Core, error) {
	log := logger.NewConsole()
	if verbose {
		fileLog, err := logger.NewLogger(cfg)
		if err != nil {
			return nil, err
		}
		log = fileLog
	}

	var err error
	core, err = app.NewCore(ctx, cfg, log, app.CoreOptions{Offsite: offsite})
	return core, err
}

// Execute runs the root command; errors are printed and exit with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write info logs to the log directory and stdout")
}
