package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/documiner/internal/config"
	"github.com/entrepeneur4lyf/documiner/internal/llm"
	"github.com/entrepeneur4lyf/documiner/internal/llm/providers"
	"github.com/entrepeneur4lyf/documiner/internal/session"
	"github.com/entrepeneur4lyf/documiner/internal/storage"
)

// App represents the main DocuMiner application with all integrated systems
type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Store      *storage.FileHistoryStore
	Client     llm.Client
	Controller *session.Controller

	paths   *storage.PathManager
	logFile *os.File
}

// AppConfig represents configuration for app initialization
type AppConfig struct {
	ConfigPath string
	WorkingDir string
	Debug      bool
	// LogOutput overrides the log destination; used by tests.
	LogOutput io.Writer
}

// NewApp loads configuration and wires the store, model client and session controller
func NewApp(ctx context.Context, appConfig *AppConfig) (*App, error) {
	workingDir := appConfig.WorkingDir
	if workingDir == "" {
		workingDir = "."
	}
	absWorkingDir, err := filepath.Abs(workingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	cfg, err := config.Load(absWorkingDir, appConfig.Debug, appConfig.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app := &App{Config: cfg, paths: storage.NewPathManagerAt(cfg.Data.Directory)}

	if err := app.initializeLogging(appConfig.LogOutput); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	app.Store = storage.NewHistoryStore(cfg.History.Directory, app.Logger)
	if err := app.Store.EnsureDir(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}

	if err := app.initializeClient(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	tempDir := cfg.Upload.TempDir
	if tempDir == "" {
		if tempDir, err = app.paths.GetTempDir(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}

	app.Controller = session.NewController(app.Store, app.Client, app.Logger, session.Options{
		MaxDocuments: cfg.Upload.MaxDocuments,
		PollInterval: cfg.Upload.PollInterval,
		TempDir:      tempDir,
	})

	app.Logger.Info("DocuMiner initialized",
		"history", cfg.History.Directory,
		"model", cfg.Gemini.Model,
		"api_key", cfg.HasAPIKey())

	return app, nil
}

// initializeLogging writes to stderr in debug mode and to <data>/logs/documiner.log otherwise
func (app *App) initializeLogging(override io.Writer) error {
	out := override
	if out == nil {
		if app.Config.Debug {
			out = os.Stderr
		} else {
			logDir, err := app.paths.GetLogsDir()
			if err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
			f, err := os.OpenFile(filepath.Join(logDir, "documiner.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to create log file: %w", err)
			}
			app.logFile = f
			out = f
		}
	}

	level, err := log.ParseLevel(app.Config.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}

	app.Logger = log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Prefix:          "documiner",
		Level:           level,
	})
	return nil
}

// initializeClient creates the Gemini client. A missing key is not fatal:
// history browsing works without one.
func (app *App) initializeClient(ctx context.Context) error {
	gemini := app.Config.Gemini
	systemPrompt := gemini.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = providers.DefaultSystemPrompt
	}

	client, err := providers.NewGeminiClient(ctx, providers.GeminiOptions{
		APIKey:          gemini.APIKey,
		ModelID:         gemini.Model,
		Temperature:     gemini.Temperature,
		MaxOutputTokens: gemini.MaxOutputTokens,
		JSONResponse:    gemini.JSONResponse,
		SystemPrompt:    systemPrompt,
	}, app.Logger)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			app.Logger.Warn("no Gemini API key configured; set GEMINI_API_KEY to chat with documents")
			return nil
		}
		return err
	}

	app.Client = client
	return nil
}

// Close closes all app resources
func (app *App) Close() error {
	if app.logFile != nil {
		err := app.logFile.Close()
		app.logFile = nil
		return err
	}
	return nil
}
