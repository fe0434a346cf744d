package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web management API",
	Long: `Run the web management API.

Starts the HTTP API plus the background jobs: status polling, session
reaping, and history pruning. Host and port come from the settings
document unless overridden with flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := appInstance.StartScheduler(ctx); err != nil {
			return err
		}

		settings := appInstance.Settings.Get()
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		if host == "" {
			host = settings.WebHost
		}
		if port == 0 {
			port = settings.WebPort
		}

		slog.Info("starting web API", "host", host, "port", port)

		errCh := make(chan error, 1)
		go func() {
			errCh <- appInstance.Web.Run(host, port)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("web server failed: %w", err)
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().String("host", "", "listen address (default from settings)")
	serveCmd.Flags().IntP("port", "p", 0, "listen port (default from settings)")
}
