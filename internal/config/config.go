package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Data defines storage configuration
type Data struct {
	Directory string `json:"directory,omitempty"`
}

// HistoryConfig defines where chat transcripts are written
type HistoryConfig struct {
	Directory string `json:"directory,omitempty"`
}

// GeminiConfig defines the hosted model settings
type GeminiConfig struct {
	APIKey          string  `json:"apiKey"`
	Model           string  `json:"model"`
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int32   `json:"maxOutputTokens"`
	JSONResponse    bool    `json:"jsonResponse"`
	SystemPrompt    string  `json:"systemPrompt,omitempty"`
}

// UploadConfig defines document upload limits
type UploadConfig struct {
	MaxDocuments int           `json:"maxDocuments"`
	PollInterval time.Duration `json:"pollInterval"`
	TempDir      string        `json:"tempDir,omitempty"`
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LogConfig defines logging output
type LogConfig struct {
	Level string `json:"level"`
}

// Config is the main configuration structure for the application
type Config struct {
	Data       Data          `json:"data"`
	History    HistoryConfig `json:"history"`
	Gemini     GeminiConfig  `json:"gemini"`
	Upload     UploadConfig  `json:"upload"`
	Server     ServerConfig  `json:"server"`
	Log        LogConfig     `json:"log"`
	Debug      bool          `json:"debug,omitempty"`
	WorkingDir string        `json:"wd,omitempty"`
}

// Application constants
const (
	appName                = "documiner"
	defaultDataDirectory   = ".documiner"
	defaultHistoryDirName  = "chat_histories"
	defaultLogLevel        = "info"
	defaultModel           = "gemini-2.0-flash"
	DefaultMaxDocuments    = 3
	defaultPollInterval    = 10 * time.Second
	defaultServerPort      = 47100
	defaultMaxOutputTokens = 8192
)

// apiKeyEnvVars are consulted in order when no key is configured
var apiKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// Load reads configuration from an optional .env file in workingDir, the
// config file (explicit path or the default search locations) and DOCUMINER_*
// environment variables, in increasing order of precedence.
func Load(workingDir string, debug bool, configFile string) (*Config, error) {
	if err := loadDotEnv(workingDir); err != nil {
		return nil, err
	}

	v := viper.New()
	configureViper(v, configFile)
	setDefaults(v, debug)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	loaded.WorkingDir = workingDir
	loaded.applyDerivedDefaults()

	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	return loaded, nil
}

// loadDotEnv loads workingDir/.env without overriding variables already set
func loadDotEnv(workingDir string) error {
	path := filepath.Join(workingDir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}

// configureViper sets up viper's configuration paths and environment variables
func configureViper(v *viper.Viper, configFile string) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(fmt.Sprintf(".%s", appName))
		v.SetConfigType("json")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
		v.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	}
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults configures default values for configuration options
func setDefaults(v *viper.Viper, debug bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault("data.directory", filepath.Join(home, defaultDataDirectory))
	v.SetDefault("history.directory", "")

	v.SetDefault("gemini.apiKey", "")
	v.SetDefault("gemini.model", defaultModel)
	v.SetDefault("gemini.temperature", 1.0)
	v.SetDefault("gemini.maxOutputTokens", defaultMaxOutputTokens)
	v.SetDefault("gemini.jsonResponse", true)
	v.SetDefault("gemini.systemPrompt", "")

	v.SetDefault("upload.maxDocuments", DefaultMaxDocuments)
	v.SetDefault("upload.pollInterval", defaultPollInterval)
	v.SetDefault("upload.tempDir", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)

	if debug {
		v.Set("debug", true)
		v.Set("log.level", "debug")
	} else {
		v.SetDefault("debug", false)
		v.SetDefault("log.level", defaultLogLevel)
	}
}

// readConfig reads the config file, tolerating its absence
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func (c *Config) applyDerivedDefaults() {
	if c.History.Directory == "" {
		c.History.Directory = filepath.Join(c.Data.Directory, defaultHistoryDirName)
	}
	if c.Gemini.APIKey == "" {
		for _, name := range apiKeyEnvVars {
			if key := os.Getenv(name); key != "" {
				c.Gemini.APIKey = key
				break
			}
		}
	}
}

// Validate reports configuration values the application cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Upload.MaxDocuments < 1:
		return fmt.Errorf("upload.maxDocuments must be at least 1, got %d", c.Upload.MaxDocuments)
	case c.Upload.PollInterval <= 0:
		return fmt.Errorf("upload.pollInterval must be positive, got %s", c.Upload.PollInterval)
	case strings.TrimSpace(c.Gemini.Model) == "":
		return errors.New("gemini.model must not be empty")
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// HasAPIKey reports whether a Gemini credential is available
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.Gemini.APIKey) != ""
}

// ServerAddr returns the host:port the API server listens on
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
