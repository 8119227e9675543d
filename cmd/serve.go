package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"truelink/api"
	"truelink/downloader"
	"truelink/internal"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !config.EnableDebug {
			gin.SetMode(gin.ReleaseMode)
		}

		a, err := newApp(*config)
		if err != nil {
			return err
		}
		defer a.close()

		streamer := downloader.NewStreamer(a.client, config.ChunkSize, nil)
		server := api.NewServer(a.orch, a.generic, streamer, *config)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			internal.LogInfo("TrueLink %s listening on %s (%d domains)", api.Version, srv.Addr, len(a.generic.SupportedDomains()))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		internal.LogInfo("Shutting down, waiting up to %v for open requests", shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		internal.LogInfo("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 5000, "Port to listen on (env: PORT)")
}
