package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/entrepeneur4lyf/documiner/internal/app"
	"github.com/spf13/cobra"
)

var (
	debug      bool
	workingDir string
	configFile string
)

// Global app instance shared by all subcommands
var documinerApp *app.App

var rootCmd = &cobra.Command{
	Use:   "documiner",
	Short: "Chat with your PDF documents",
	Long: `DocuMiner uploads up to three PDF documents to Gemini and lets you ask
questions about them. Every chat is saved and can be reloaded later.

Usage:
  documiner chat report.pdf annex.pdf   # Chat about documents in the terminal
  documiner serve                       # Start the HTTP API
  documiner history list                # Browse saved chats

Set GEMINI_API_KEY (or put it in .env) before chatting.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		documinerApp, err = app.NewApp(context.Background(), &app.AppConfig{
			ConfigPath: configFile,
			WorkingDir: workingDir,
			Debug:      debug,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize DocuMiner: %w", err)
		}
		return nil
	},
}

func init() {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode (logs to stderr)")
	rootCmd.PersistentFlags().StringVar(&workingDir, "wd", wd, "Working directory (where .env is read from)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a JSON config file")
}

// Execute runs the root command
func Execute() {
	defer func() {
		if documinerApp != nil {
			documinerApp.Close()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
