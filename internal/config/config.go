// Package config loads the plugin's runner configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rigger/pkg/logging"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// RunnerConfig configures how playbook runs are executed.
type RunnerConfig struct {
	// Executable is the playbook runner binary. It must be resolvable on
	// PATH or an absolute path.
	Executable string

	// DefaultTimeout bounds a playbook run when the caller does not supply
	// a timeout of its own.
	DefaultTimeout time.Duration

	// ExtraArgs are appended to every invocation.
	ExtraArgs []string
}

// runnerConfigYAML is the on-disk shape; durations are strings in
// time.ParseDuration form.
type runnerConfigYAML struct {
	Executable     string   `yaml:"executable"`
	DefaultTimeout string   `yaml:"defaultTimeout"`
	ExtraArgs      []string `yaml:"extraArgs"`
}

// DefaultRunnerConfig returns the built-in defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Executable:     "ansible-playbook",
		DefaultTimeout: 10 * time.Minute,
	}
}

// Load reads config.yaml from the given directory, overlaying it onto the
// defaults. A missing file is not an error; a malformed one is.
func Load(configPath string) (RunnerConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := DefaultRunnerConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return RunnerConfig{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}
	var onDisk runnerConfigYAML
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		return RunnerConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	if onDisk.Executable != "" {
		config.Executable = onDisk.Executable
	}
	if onDisk.DefaultTimeout != "" {
		timeout, err := time.ParseDuration(onDisk.DefaultTimeout)
		if err != nil {
			return RunnerConfig{}, fmt.Errorf("invalid defaultTimeout in %s: %w", configFilePath, err)
		}
		config.DefaultTimeout = timeout
	}
	if onDisk.ExtraArgs != nil {
		config.ExtraArgs = onDisk.ExtraArgs
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}
