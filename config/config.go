package config

import (
	"fmt"
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

/*
	input is ordercheck.yml
	users pick scenarios, exploration limits and output in it; command-line
	flags override the file.
*/

const DefaultFile = "ordercheck.yml"

type Config struct {
	Scenarios []string       `yaml:"scenarios"`
	Explorer  ExplorerConfig `yaml:"explorer"`
	Stress    StressConfig   `yaml:"stress"`
	Output    OutputConfig   `yaml:"output"`
	History   HistoryConfig  `yaml:"history"`
}

type ExplorerConfig struct {
	MaxPreemptions int `yaml:"maxPreemptions"`
	MaxBranches    int `yaml:"maxBranches"`
	MaxIterations  int `yaml:"maxIterations"`
}

type StressConfig struct {
	Iterations int `yaml:"iterations"`
	Workers    int `yaml:"workers"`
}

type OutputConfig struct {
	Format string `yaml:"format"`
	Color  bool   `yaml:"color"`
}

type HistoryConfig struct {
	// Path of the sqlite database; empty disables the history.
	Path string `yaml:"path"`
}

var formats = map[string]bool{"text": true, "json": true, "html": true}

func Default() Config {
	return Config{
		Explorer: ExplorerConfig{MaxBranches: 1000},
		Stress:   StressConfig{Iterations: 10000},
		Output:   OutputConfig{Format: "text", Color: true},
	}
}

// Decode overlays the YAML document on the defaults.
func Decode(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("yml decode error: %w", err)
	}
	return cfg, cfg.Validate()
}

// DecodeYmlFile reads the configuration at absPath. A missing file yields
// the defaults.
func DecodeYmlFile(absPath string) (Config, error) {
	data, err := ioutil.ReadFile(absPath)
	if os.IsNotExist(err) {
		log.Debugf("No %s found, using defaults", absPath)
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	return Decode(data)
}

func (c Config) Validate() error {
	if !formats[c.Output.Format] {
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	if c.Explorer.MaxPreemptions < 0 || c.Explorer.MaxBranches < 0 || c.Explorer.MaxIterations < 0 {
		return fmt.Errorf("explorer limits must not be negative: %+v", c.Explorer)
	}
	if c.Stress.Iterations < 0 || c.Stress.Workers < 0 {
		return fmt.Errorf("stress settings must not be negative: %+v", c.Stress)
	}
	return nil
}
