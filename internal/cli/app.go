package cli

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/veritas-audit/veritas/internal/app"
	"github.com/veritas-audit/veritas/internal/model"
)

// resolveConfig builds a Config from defaults, layering in the config file
// initConfig (root.go) already located. Env vars and flags are bound
// through viper for the settings that have PersistentFlags; everything
// else comes from the file or the built-in defaults.
func resolveConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	return cfg, nil
}

// buildApp resolves configuration and wires a full App instance. Callers
// own the returned App and must Close it.
func buildApp() (*app.App, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}
