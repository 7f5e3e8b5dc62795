package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrepeneur4lyf/documiner/internal/api"
	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the DocuMiner HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := documinerApp.Config
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		server := api.NewServer(documinerApp.Controller, documinerApp.Logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.ServerAddr())
		}()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Starting DocuMiner API Server\n")
		fmt.Fprintf(out, "Server: http://%s\n", cfg.ServerAddr())
		fmt.Fprintf(out, "Health: http://%s/api/v1/health\n", cfg.ServerAddr())
		fmt.Fprintf(out, "WebSocket: ws://%s/api/v1/chat/ws\n", cfg.ServerAddr())
		if !documinerApp.Controller.HasClient() {
			fmt.Fprintln(out, "Warning: no Gemini API key configured; uploads and chat are disabled")
		}

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
