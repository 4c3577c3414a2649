// Package config handles configuration loading and management for jit.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default model chains. The first entry of each chain is tried first.
const (
	ModelSonnet = "claude-sonnet-4-5-20250929"
	ModelHaiku  = "claude-haiku-4-5-20251001"
)

// projectConfigName is looked up in the working directory and its parents.
const projectConfigName = ".jit.yaml"

// Config holds all configuration for jit.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Models    ModelsConfig    `mapstructure:"models"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Context   ContextConfig   `mapstructure:"context"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	State     StateConfig     `mapstructure:"state"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
}

// ModelsConfig holds the ordered model chain for each role.
type ModelsConfig struct {
	Router      []string `mapstructure:"router"`
	Planner     []string `mapstructure:"planner"`
	Agent       []string `mapstructure:"agent"`
	Synthesizer []string `mapstructure:"synthesizer"`
}

// EngineConfig tunes graph execution.
type EngineConfig struct {
	// MaxParallel caps concurrent subtasks per frontier. 0 means unlimited.
	MaxParallel int `mapstructure:"max_parallel"`
	// RetriesPerModel is how many extra attempts a model gets before the
	// chain moves on.
	RetriesPerModel int `mapstructure:"retries_per_model"`
	// CallTimeout bounds a single backend call. 0 means no timeout.
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// MaxToolIterations bounds the API round trips of one tool-using call.
	MaxToolIterations int `mapstructure:"max_tool_iterations"`
}

// ContextConfig holds conversation history budgets in estimated tokens.
type ContextConfig struct {
	RouterTokens  int `mapstructure:"router_tokens"`
	PlannerTokens int `mapstructure:"planner_tokens"`
}

// ToolsConfig selects the capability providers.
type ToolsConfig struct {
	// Manifest is the path to a YAML tool manifest. Empty disables it.
	Manifest string `mapstructure:"manifest"`
	// WorkDir roots the built-in providers. Empty means the current directory.
	WorkDir string `mapstructure:"workdir"`
	// Builtin enables the filesystem and shell providers.
	Builtin bool `mapstructure:"builtin"`
	// Protected adds paths the builtin Write and Edit tools refuse to touch:
	// glob patterns, or bare extensions such as ".sql".
	Protected []string `mapstructure:"protected"`
}

// StateConfig selects the session database.
type StateConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// ServerConfig holds the HTTP/WebSocket server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// AllowedOrigins lists extra browser origin hosts, e.g. "localhost:3000",
	// that may open the WebSocket. Same-origin requests are always accepted.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (JIT_*, ANTHROPIC_API_KEY)
// 2. Project config (.jit.yaml in current directory or parent)
// 3. User config (~/.config/jit/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := load()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadFromPath loads configuration from a specific path, ignoring the user
// and project files. Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// Get returns the effective value of a single key.
func Get(key string) (interface{}, error) {
	v, err := load()
	if err != nil {
		return nil, err
	}
	if !isKnownKey(v, key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	return v.Get(key), nil
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	keys := newViper().AllKeys()
	sort.Strings(keys)
	return keys
}

// Set writes one key to the user config file, keeping the keys already there.
// Model chain keys and list keys accept a comma-separated list.
func Set(key, value string) error {
	if !isKnownKey(newViper(), key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	path := GetUserConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading user config: %w", err)
		}
	}

	if strings.HasPrefix(key, "models.") || key == "tools.protected" || key == "server.allowed_origins" {
		v.Set(key, splitList(value))
	} else {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	path := GetUserConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("models.router", cfg.Models.Router)
	v.Set("models.planner", cfg.Models.Planner)
	v.Set("models.agent", cfg.Models.Agent)
	v.Set("models.synthesizer", cfg.Models.Synthesizer)
	v.Set("engine.max_parallel", cfg.Engine.MaxParallel)
	v.Set("engine.retries_per_model", cfg.Engine.RetriesPerModel)
	v.Set("engine.call_timeout", cfg.Engine.CallTimeout.String())
	v.Set("engine.max_tool_iterations", cfg.Engine.MaxToolIterations)
	v.Set("context.router_tokens", cfg.Context.RouterTokens)
	v.Set("context.planner_tokens", cfg.Context.PlannerTokens)
	v.Set("tools.manifest", cfg.Tools.Manifest)
	v.Set("tools.workdir", cfg.Tools.WorkDir)
	v.Set("tools.builtin", cfg.Tools.Builtin)
	v.Set("tools.protected", cfg.Tools.Protected)
	v.Set("state.driver", cfg.State.Driver)
	v.Set("state.path", cfg.State.Path)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.Set("logging.path", cfg.Logging.Path)

	return v.WriteConfig()
}

// Validate reports settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	for role, chain := range map[string][]string{
		"router":      c.Models.Router,
		"planner":     c.Models.Planner,
		"agent":       c.Models.Agent,
		"synthesizer": c.Models.Synthesizer,
	} {
		if len(chain) == 0 {
			errs = append(errs, fmt.Errorf("models.%s: at least one model is required", role))
		}
	}
	if c.Engine.MaxParallel < 0 {
		errs = append(errs, errors.New("engine.max_parallel must not be negative"))
	}
	if c.Engine.RetriesPerModel < 0 {
		errs = append(errs, errors.New("engine.retries_per_model must not be negative"))
	}
	switch c.State.Driver {
	case "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("state.driver: unsupported driver %q", c.State.Driver))
	}
	return errors.Join(errs...)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DefaultLogPath returns the debug log location under XDG_STATE_HOME.
func DefaultLogPath() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", ".local", "state", "jit", "debug.log")
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "jit", "debug.log")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{MaxTokens: 4096},
		Models: ModelsConfig{
			Router:      []string{ModelHaiku, ModelSonnet},
			Planner:     []string{ModelSonnet, ModelHaiku},
			Agent:       []string{ModelSonnet, ModelHaiku},
			Synthesizer: []string{ModelHaiku, ModelSonnet},
		},
		Engine: EngineConfig{
			RetriesPerModel:   1,
			CallTimeout:       2 * time.Minute,
			MaxToolIterations: 20,
		},
		Context: ContextConfig{RouterTokens: 500, PlannerTokens: 1000},
		Tools:   ToolsConfig{Builtin: true},
		State:   StateConfig{Driver: "sqlite"},
		Server:  ServerConfig{Addr: "127.0.0.1:8420"},
		Logging: LoggingConfig{Path: DefaultLogPath()},
	}
}

// load layers the user file, the project file and the environment.
func load() (*viper.Viper, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}
	return v, nil
}

// newViper returns a viper with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "JIT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Tools.Manifest = expandEnv(cfg.Tools.Manifest)
	cfg.Tools.WorkDir = expandEnv(cfg.Tools.WorkDir)
	cfg.State.Path = expandEnv(cfg.State.Path)
	cfg.Logging.Path = expandEnv(cfg.Logging.Path)
	return cfg, nil
}

// setDefaults configures default values from Default.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", d.Anthropic.UseBedrock)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)

	v.SetDefault("models.router", d.Models.Router)
	v.SetDefault("models.planner", d.Models.Planner)
	v.SetDefault("models.agent", d.Models.Agent)
	v.SetDefault("models.synthesizer", d.Models.Synthesizer)

	v.SetDefault("engine.max_parallel", d.Engine.MaxParallel)
	v.SetDefault("engine.retries_per_model", d.Engine.RetriesPerModel)
	v.SetDefault("engine.call_timeout", d.Engine.CallTimeout.String())
	v.SetDefault("engine.max_tool_iterations", d.Engine.MaxToolIterations)

	v.SetDefault("context.router_tokens", d.Context.RouterTokens)
	v.SetDefault("context.planner_tokens", d.Context.PlannerTokens)

	v.SetDefault("tools.manifest", "")
	v.SetDefault("tools.workdir", "")
	v.SetDefault("tools.builtin", d.Tools.Builtin)
	v.SetDefault("tools.protected", []string{})

	v.SetDefault("state.driver", d.State.Driver)
	v.SetDefault("state.path", "")

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("logging.path", d.Logging.Path)
}

func isKnownKey(v *viper.Viper, key string) bool {
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getUserConfigDir returns the XDG config directory for jit.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "jit")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "jit")
	}
	return filepath.Join(home, ".config", "jit")
}

// findProjectConfig searches for .jit.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, projectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
