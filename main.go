package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"holdingsflow/config"
	"holdingsflow/logger"
)

var (
	configPath string
	cfg        *config.Config
	log        = logger.GetLogger()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("command failed")
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "holdingsflow",
	Short:         "Extract, normalize and diff 13F institutional holdings",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables from .env if present
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("Error loading .env file")
		}

		path := config.ResolvePath(configPath)
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded

		if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
			return err
		}
		if cfg.Logging.ErrorOutput != "" {
			if err := log.EnableErrorLog(cfg.Logging.ErrorOutput, cfg.Logging.MaxAge); err != nil {
				return err
			}
		}
		if cfg.Metrics.CloudWatch {
			logger.InitCloudWatch(cmd.Context(), cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Metrics.Dashboard)
		}

		log.WithEnv("APP_ENV").WithFields(logger.Fields{
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"config":  path,
			"command": cmd.Name(),
		}).Info("starting holdingsflow")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		warnings, errs := log.ErrorLogCounts()
		log.WithFields(logger.Fields{
			"command":  cmd.Name(),
			"warnings": warnings,
			"errors":   errs,
		}).Info("holdingsflow finished")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to configuration file")

	rootCmd.AddCommand(
		downloadIndexCmd,
		seedCmd,
		updateCmd,
		previewCmd,
		changesCmd,
		topCmd,
		importTopCmd,
		archiveCmd,
	)
}
