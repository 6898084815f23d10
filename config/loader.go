package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "coderonin.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/coderonin"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Environment variables read by ApplyEnv.
const (
	EnvGroqAPIKey     = "GROQ_API_KEY"
	EnvViteGroqAPIKey = "VITE_GROQ_API_KEY"
	EnvGeneratorURL   = "CODERONIN_GENERATOR_URL"
	EnvGeneratorModel = "CODERONIN_GENERATOR_MODEL"
	EnvSerperAPIKey   = "SERPER_API_KEY"
	EnvDocsDir        = "CODERONIN_DOCS_DIR"
	EnvNATSURL        = "NATS_URL"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger  *slog.Logger
	getenv  func(string) string
	homeDir func() (string, error)
	workDir func() (string, error)
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:  logger,
		getenv:  os.Getenv,
		homeDir: os.UserHomeDir,
		workDir: os.Getwd,
	}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/coderonin/config.yaml)
// 3. Project config (coderonin.yaml in current or parent directories)
// 4. explicitPath, if non-empty (must exist)
// 5. Environment variables
func (l *Loader) Load(explicitPath string) (*Config, error) {
	config := DefaultConfig()

	// Load user config
	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if err := config.overlayFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	// Load project config
	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if err := config.overlayFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if explicitPath != "" {
		if err := config.overlayFile(explicitPath); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicitPath))
	}

	l.ApplyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overlays environment variables onto config. GROQ_API_KEY wins over
// VITE_GROQ_API_KEY.
func (l *Loader) ApplyEnv(config *Config) {
	if key := l.getenv(EnvGroqAPIKey); key != "" {
		config.Generator.APIKey = key
	} else if key := l.getenv(EnvViteGroqAPIKey); key != "" {
		config.Generator.APIKey = key
	}
	if v := l.getenv(EnvGeneratorURL); v != "" {
		config.Generator.URL = v
	}
	if v := l.getenv(EnvGeneratorModel); v != "" {
		config.Generator.Model = v
	}
	if v := l.getenv(EnvSerperAPIKey); v != "" {
		config.Docs.SearchAPIKey = v
	}
	if v := l.getenv(EnvDocsDir); v != "" {
		config.Docs.Dir = v
	}
	if v := l.getenv(EnvNATSURL); v != "" {
		config.Events.NATSURL = v
	}
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil // Already exists
	}

	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := l.homeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for coderonin.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := l.workDir()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
