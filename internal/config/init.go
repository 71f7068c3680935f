package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Repo: RepoConfig{Path: "."},
		Refs: RefsConfig{
			Names:   []string{"main", "v*"},
			Exclude: []string{"wip/*"},
			Main:    "main",
		},
		Build: BuildConfig{Workers: 1},
		Compiler: CompilerConfig{
			Command: "sphinx-build",
			Args:    []string{"-b", "html", "{source}/docs", "{output}"},
		},
		Cache:  CacheConfig{Dir: ".verdocs-cache"},
		Output: OutputConfig{Dir: "./site", Clean: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	header := "# verdocs configuration\n# Environment variables in values are expanded (${VAR}).\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
