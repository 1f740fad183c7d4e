package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ProjectConfigFile is searched upward from the working directory.
	ProjectConfigFile = "standards.yaml"

	// UserConfigDir holds the user-level config.
	UserConfigDir = ".config/standards"

	// UserConfigFile is the user-level config file name.
	UserConfigFile = "config.yaml"
)

// Environment variable names. Secrets are env-only by design.
const (
	EnvAddr       = "STANDARDS_ADDR"
	EnvNATSURL    = "STANDARDS_NATS_URL"
	EnvGatewayURL = "STANDARDS_GATEWAY_URL"
	EnvSyncRoot   = "STANDARDS_SYNC_ROOT"
	EnvOutputDir  = "STANDARDS_OUTPUT_DIR"
	EnvRateLimit  = "STANDARDS_RATE_LIMIT"
	EnvJWTSecret  = "STANDARDS_JWT_SECRET"
	EnvAPIKeys    = "STANDARDS_API_KEYS"
)

// Loader loads configuration with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load builds the effective configuration:
//
//  1. defaults
//  2. user config (~/.config/standards/config.yaml)
//  3. project config (standards.yaml in current or parent directories)
//  4. environment overrides
func (l *Loader) Load() (*Config, error) {
	config := Default()

	userPath := l.userConfigPath()
	if userPath != "" {
		if userConfig, err := LoadFromFile(userPath); err == nil {
			l.logger.Debug("loaded user config", "path", userPath)
			config.Merge(userConfig)
		} else if !os.IsNotExist(err) {
			l.logger.Warn("failed to load user config", "path", userPath, "error", err)
		}
	}

	if projectPath := l.findProjectConfig(); projectPath != "" {
		if projectConfig, err := LoadFromFile(projectPath); err == nil {
			l.logger.Debug("loaded project config", "path", projectPath)
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("failed to load project config", "path", projectPath, "error", err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overlays non-secret environment overrides.
func applyEnv(config *Config) {
	if v := os.Getenv(EnvAddr); v != "" {
		config.Server.Addr = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		config.NATS.URL = v
	}
	if v := os.Getenv(EnvGatewayURL); v != "" {
		config.Gateway.URL = v
	}
	if v := os.Getenv(EnvSyncRoot); v != "" {
		config.Sync.Root = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		config.Workflow.OutputDir = v
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Server.RequestsPerMinute = n
		}
	}
}

// JWTSecret returns the token signing secret from the environment.
func JWTSecret() string {
	return os.Getenv(EnvJWTSecret)
}

// APIKeys parses the env key store: "key:user" pairs separated by
// commas. Malformed pairs are skipped.
func APIKeys() map[string]string {
	raw := os.Getenv(EnvAPIKeys)
	if raw == "" {
		return nil
	}
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, user, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || key == "" || user == "" {
			continue
		}
		keys[key] = user
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}

// EnsureUserConfig writes a default user config when none exists.
func (l *Loader) EnsureUserConfig() error {
	path := l.userConfigPath()
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := Default().SaveToFile(path); err != nil {
		return err
	}
	l.logger.Info("created default user config", "path", path)
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches upward from the working directory.
func (l *Loader) findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
