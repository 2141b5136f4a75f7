package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/mcdev12/sketchturn/go/internal/session"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context, cfg *Config, rules session.Rules) error {
	log.Info().
		Str("version", releaseVersion).
		Int("max_rounds", rules.MaxRounds).
		Int("turn_seconds", rules.TurnSeconds).
		Msg("starting sketchturn")

	services, err := setupServices(ctx, cfg, rules)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	services.Start(runCtx)

	server := setupServer(cfg, services)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("HTTP server shutdown failed")
	}

	cancel()
	services.Close()

	log.Info().Msg("sketchturn shutdown complete")
	return err
}

func setupServer(cfg *Config, services *Services) *http.Server {
	router := httprouter.New()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{cfg.clientURL},
		AllowedHeaders: []string{"*"},
	})

	services.WebSocket.RegisterRoutes(router)
	services.Admin.RegisterRoutes(router)
	services.AdminHTTP.RegisterRoutes(router)
	setupHealthCheck(router)

	handler := c.Handler(router)

	// h2c lets Connect clients speak HTTP/2 without TLS
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func setupHealthCheck(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
