package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"radiobot/internal/shutdown"
	"radiobot/internal/web"
)

var (
	serveRadio    bool
	serveRadioOut string
)

// serveCmd runs the HTTP status/control surface.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control surface",
	Long: `Start the HTTP server exposing fetch jobs, radio control, polls,
and a websocket status push. With --radio the radio loop starts immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sh := shutdown.New()
		sh.Listen()

		a, err := buildApp(sh.Context())
		if err != nil {
			return err
		}
		defer a.close()

		jobMgr := web.NewJobManager()
		jobMgr.StartCleanup(sh.Context())

		server := web.NewServer(sh.Context(), jobMgr, a.orch, a.radio, a.st, a.log)
		httpServer := &http.Server{
			Addr:         fmt.Sprintf(":%d", a.cfg.Web.Port),
			Handler:      server.Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// The web API can start the loop at any time, so the destination
		// is wired up front regardless of --radio.
		if err := wireRadioOutput(a.radio, serveRadioOut); err != nil {
			return err
		}
		if serveRadio {
			a.radio.Start(sh.Context())
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("Starting web server on port %d", a.cfg.Web.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-sh.Context().Done():
		}

		a.log.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			a.log.Error("Server shutdown error: %v", err)
		}
		a.log.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveRadio, "radio", false, "start the radio loop on boot")
	serveCmd.Flags().StringVar(&serveRadioOut, "radio-out", "radio-tracks", "directory radio tracks are copied into")
	rootCmd.AddCommand(serveCmd)
}
