package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/video2comic/internal/config"
	"github.com/ivlev/video2comic/internal/logger"
)

type commandContext struct {
	configFlag    string
	logLevelFlag  string
	logFormatFlag string

	once   sync.Once
	config config.Config
	log    *zap.Logger
	err    error
}

// load reads the configuration and builds the logger once per process.
// Command-specific flags are applied by each command afterwards.
func (c *commandContext) load() (config.Config, *zap.Logger, error) {
	c.once.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		if c.logLevelFlag != "" {
			cfg.LogLevel = c.logLevelFlag
		}
		if c.logFormatFlag != "" {
			cfg.LogFormat = c.logFormatFlag
		}
		log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			c.err = err
			return
		}
		c.config, c.log = cfg, log
	})
	return c.config, c.log, c.err
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "video2comic",
		Short:         "Turn a video into comic pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormatFlag, "log-format", "", "Log format: console, json")

	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newScenesCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))

	return rootCmd
}
