package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where assess looks for a run configuration when no
// --config flag is given.
const DefaultPath = "idguard.yaml"

// Sources holds the input paths for the five detectors. Empty entries mean
// the source was not collected and its detector is skipped.
type Sources struct {
	DirectoryConfig string `yaml:"directory_config"` // JSON file
	Privilege       string `yaml:"privilege"`        // JSON file
	CloudDirectory  string `yaml:"cloud_directory"`  // JSON file
	AttackPathDir   string `yaml:"attack_path_dir"`  // directory of graph exports
	RiskScan        string `yaml:"risk_scan"`        // XML or HTML report
}

// Config is one assessment run configuration.
type Config struct {
	Organization string  `yaml:"organization"`
	Sources      Sources `yaml:"sources"`
	CatalogDir   string  `yaml:"catalog_dir"` // optional risk-rule catalog
	OutputDir    string  `yaml:"output_dir"`
}

// Default returns a starter configuration.
func Default() *Config {
	return &Config{
		Organization: "Example Corp",
		Sources: Sources{
			DirectoryConfig: "input/directory-config.json",
			Privilege:       "input/privilege.json",
			CloudDirectory:  "input/cloud-directory.json",
			AttackPathDir:   "input/attack-path",
			RiskScan:        "input/risk-scan.xml",
		},
		OutputDir: "reports",
	}
}

// Load reads a run configuration from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "reports"
	}
	return &cfg, nil
}

// Save writes a configuration to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
