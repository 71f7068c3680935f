package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/verdocs/internal/errors"
)

// Config represents the application configuration.
type Config struct {
	Repo     RepoConfig     `yaml:"repo"`
	Refs     RefsConfig     `yaml:"refs"`
	Build    BuildConfig    `yaml:"build"`
	Compiler CompilerConfig `yaml:"compiler"`
	Cache    CacheConfig    `yaml:"cache"`
	Output   OutputConfig   `yaml:"output"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RepoConfig identifies the source repository.
type RepoConfig struct {
	Path string `yaml:"path"` // Local git repository root. Defaults to CWD.
}

// RefsConfig controls which branches/tags are selected for building.
type RefsConfig struct {
	Names    []string `yaml:"names,omitempty"`   // Glob patterns for explicit selection
	Pattern  string   `yaml:"pattern,omitempty"` // Regex; union with Names per resolve policy
	Exclude  []string `yaml:"exclude,omitempty"` // Glob patterns removed after selection
	Main     string   `yaml:"main,omitempty"`    // Main ref name, redirect target
	Force    bool     `yaml:"force,omitempty"`   // Tolerate missing main / detached HEAD
	Branches *bool    `yaml:"branches,omitempty"`
	Tags     *bool    `yaml:"tags,omitempty"`
}

// BuildConfig holds orchestration options.
type BuildConfig struct {
	Workers       int  `yaml:"workers,omitempty"`        // Parallel builds; default 1
	KeepSnapshots bool `yaml:"keep_snapshots,omitempty"` // Retain checkouts for debugging
}

// CompilerConfig describes how to invoke the external page compiler.
// Args may contain the placeholders {source} and {output}.
type CompilerConfig struct {
	Command         string   `yaml:"command"`
	Args            []string `yaml:"args,omitempty"`
	Env             []string `yaml:"env,omitempty"`
	LogExcerptBytes int      `yaml:"log_excerpt_bytes,omitempty"`
}

// CacheConfig controls the build cache. An empty Dir disables caching.
type CacheConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Dir   string `yaml:"dir"`
	Clean bool   `yaml:"clean,omitempty"` // Clean output directory before build
}

// MetricsConfig enables the Prometheus endpoint in watch mode.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // e.g. ":9090"; empty disables
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env files if present (process environment wins).
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				fmt.Fprintf(os.Stderr, "Note: %s could not be loaded: %v\n", envPath, err)
			}
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.New(errors.CategoryConfig, errors.SeverityFatal,
			fmt.Sprintf("configuration file not found: %s", configPath))
	}

	data, err := os.ReadFile(configPath) // #nosec G304 - path supplied by operator
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file")
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Repo.Path == "" {
		c.Repo.Path = "."
	}
	if c.Refs.Main == "" {
		c.Refs.Main = "main"
	}
	if c.Build.Workers <= 0 {
		c.Build.Workers = 1
	}
	if c.Compiler.LogExcerptBytes <= 0 {
		c.Compiler.LogExcerptBytes = 4096
	}
	if len(c.Compiler.Args) == 0 {
		c.Compiler.Args = []string{"{source}", "{output}"}
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./site"
	}
	if c.Refs.Branches == nil {
		c.Refs.Branches = boolPtr(true)
	}
	if c.Refs.Tags == nil {
		c.Refs.Tags = boolPtr(true)
	}
}

// Validate checks the configuration for usability.
func (c *Config) Validate() error {
	if c.Compiler.Command == "" {
		return errors.New(errors.CategoryValidation, errors.SeverityFatal,
			"compiler.command is required")
	}
	if !*c.Refs.Branches && !*c.Refs.Tags {
		return errors.New(errors.CategoryValidation, errors.SeverityFatal,
			"refs: at least one of branches or tags must be enabled")
	}
	if c.Refs.Pattern != "" {
		if _, err := regexp.Compile(c.Refs.Pattern); err != nil {
			return errors.WrapError(err, errors.CategoryValidation,
				fmt.Sprintf("refs.pattern is not a valid regular expression: %s", c.Refs.Pattern))
		}
	}
	return nil
}

// BranchesEnabled reports whether branch refs participate in resolution.
func (c *RefsConfig) BranchesEnabled() bool { return c.Branches == nil || *c.Branches }

// TagsEnabled reports whether tag refs participate in resolution.
func (c *RefsConfig) TagsEnabled() bool { return c.Tags == nil || *c.Tags }

func boolPtr(b bool) *bool { return &b }
