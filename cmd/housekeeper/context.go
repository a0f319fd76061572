package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"housekeeper/internal/config"
	"housekeeper/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// savePath returns the file the dirs commands write back to: the resolved
// config location whether or not the file exists yet.
func (c *commandContext) savePath() (string, error) {
	if _, err := c.ensureConfig(); err != nil {
		return "", err
	}
	if c.configPath != "" {
		return c.configPath, nil
	}
	return config.DefaultConfigPath()
}

// cliLogger returns a stderr console logger for control operations. Warnings
// and errors surface; routine progress stays quiet so command output remains
// scriptable.
func (c *commandContext) cliLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.New(logging.Options{
			Level:            "warn",
			Format:           "console",
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		})
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
