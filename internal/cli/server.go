package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"skillzone-service/internal/app"
	"skillzone-service/internal/config"
	transport "skillzone-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	infra, err := buildAdapters(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	opts := serviceOptions(cfg, log)
	quizzes := app.NewQuizService(infra.store, infra.catalog, infra.submissions, opts...)
	handler := transport.NewHandler(transport.Services{
		Quizzes:    quizzes,
		Gate:       app.NewUnlockGate(infra.store, infra.catalog, opts...),
		Ledger:     app.NewPointsLedger(infra.store),
		Statistics: app.NewStatistics(infra.store, infra.catalog),
	}, transport.NewAuthenticator(cfg.Auth.JWTSecret), log)

	if interval := config.TTLDuration(cfg.Expiry.SweepInterval, 0); interval > 0 {
		sweeper, err := startSweeper(quizzes, interval, log)
		if err != nil {
			return err
		}
		defer sweeper.Stop()
		log.WithField("interval", interval).Info("expiry sweeper started")
	}

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     handler.Routes(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: live attempts hold the connection for the quiz time limit.
	}

	go func() {
		log.Infof("starting skillzone service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
