package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Inputs    Inputs    `yaml:"inputs"`
	Screening Screening `yaml:"screening"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// Inputs locates the record sets and side documents of a review.
type Inputs struct {
	DataDir        string   `yaml:"data_dir"`
	IncludeFolders []string `yaml:"include_folders"`
	ExcludeFolders []string `yaml:"exclude_folders"`
	IncludeJSON    string   `yaml:"include_json"`
	ExcludeJSON    string   `yaml:"exclude_json"`
	Overview       string   `yaml:"overview"`
	ClusterLinks   string   `yaml:"cluster_links"`
	Feeds          []Feed   `yaml:"feeds"`
}

type Feed struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// Screening controls classification and projection.
type Screening struct {
	IDPrefix string              `yaml:"id_prefix"`
	TopK     int                 `yaml:"top_k"`
	Folds    map[string][]string `yaml:"folds"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for slrreport.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "slrreport")
}

// DataDir returns the XDG data directory for slrreport.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "slrreport")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/slrreport/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'slrreport init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Inputs: Inputs{
			DataDir:        "data",
			IncludeFolders: []string{"included", "conflict"},
			ExcludeFolders: []string{"excluded", "maybe"},
		},
		Screening: Screening{
			IDPrefix: "rayyan-",
			TopK:     8,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Screening.TopK < 1 {
		return fmt.Errorf("screening.top_k must be at least 1, got %d", c.Screening.TopK)
	}
	for target, sources := range c.Screening.Folds {
		if target == "" || len(sources) == 0 {
			return fmt.Errorf("screening.folds: fold %q needs a target and at least one source", target)
		}
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// InputPath resolves a configured input path against inputs.data_dir.
// Empty stays empty; absolute paths are returned unchanged.
func (c *Config) InputPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Inputs.DataDir, p)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
