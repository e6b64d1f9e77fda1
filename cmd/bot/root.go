package main

import (
	"errors"
	"fmt"
	"strings"

	"bn-breakout-bot/internal/config"
	"bn-breakout-bot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const envFile = ".env"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Channel breakout trader for Binance USDⓈ-M futures",
		Long: `bot runs one trading unit per configured symbol. Each unit recomputes the
entry/exit channel from mark price klines, reads the position from the
exchange and keeps the matching stop orders resting.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to config file")
	cmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newLevelsCmd(opts),
		newJournalCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads .env and the config file and builds the logger.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	if err := config.LoadEnv(envFile); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigCreated) {
			return nil, nil, fmt.Errorf("wrote a config template to %s; fill in trading.symbols and credentials, then restart", o.configPath)
		}
		return nil, nil, err
	}
	if level := strings.TrimSpace(o.logLevel); level != "" {
		cfg.Log.Level = level
	}
	log := logging.New(cfg.Log)
	log.Info("config loaded", zap.String("path", o.configPath))
	return cfg, log, nil
}
