package main

import (
	"fmt"
	"os"
	"strings"

	"go_domainlink/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "linker",
		Short:         "Domain linking workflow service",
		Long:          `Links user-owned domains to hosting through nameserver delegation or manual DNS records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "INI config file (environment variables override it)")

	load := func() (*config.Config, error) {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		if err := setupLogger(cfg.Log); err != nil {
			return nil, err
		}
		logrus.Info("✓ Configuration loaded")
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newSweepCmd(load),
	)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromINI(path)
}

// setupLogger applies level and format to the standard logrus logger
func setupLogger(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return nil
}
