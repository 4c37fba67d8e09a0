package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagAPIAddr    = "api-addr"
	flagEnableCORS = "cors"
	flagAutoBlock  = "auto-block"
)

// NewServeCmd exposes a simulated chain over HTTP.
func NewServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a simulated chain over an HTTP API",
		Long: `Serve a simulated chain over an HTTP API.

Workflows are started with POST /api/v1/workflows and blocks are produced
with POST /api/v1/blocks?count=n, or on a timer when --auto-block is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, v, cmd)
		},
	}

	f := cmd.Flags()
	addSessionFlags(f)
	f.String(flagAPIAddr, ":8080", "address the API listens on")
	f.Bool(flagEnableCORS, false, "allow cross-origin requests")
	f.Duration(flagAutoBlock, 0, "produce a block on this wall-clock interval, 0 to disable")
	return cmd
}

func serve(ctx context.Context, v *viper.Viper, cmd *cobra.Command) error {
	logger, err := newLogger(cmd.ErrOrStderr(), v.GetString(flagLogLevel))
	if err != nil {
		return err
	}
	shutdown, err := setupObservability(v, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	s, err := newSession(v, logger)
	if err != nil {
		return err
	}

	var handler http.Handler = newRouter(s)
	if v.GetBool(flagEnableCORS) {
		handler = handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(handler)
	}
	handler = handlers.CombinedLoggingHandler(cmd.ErrOrStderr(), handler)

	srv := &http.Server{
		Addr:         v.GetString(flagAPIAddr),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if interval := cast.ToDuration(v.Get(flagAutoBlock)); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := s.step(); err != nil {
						logger.Error("block production failed", "error", err)
					}
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dexflowsim API listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
