package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/backup"
	"github.com/dukerupert/kinkeeper/internal/categorize"
	"github.com/dukerupert/kinkeeper/internal/events"
	"github.com/dukerupert/kinkeeper/internal/export"
	"github.com/dukerupert/kinkeeper/internal/push"
	"github.com/dukerupert/kinkeeper/internal/server"
	"github.com/dukerupert/kinkeeper/internal/store"
)

const (
	cleanupInterval = 15 * time.Minute
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and live-update server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return withDB(func(db *sql.DB) error {
			return serve(ctx, db)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, db *sql.DB) error {
	categorizer := categorize.NewClient(cfg.CategorizerURL, cfg.CategorizerAPIKey,
		categorize.WithTimeout(cfg.CategorizerTimeout),
		categorize.WithLogger(logger.With("component", "categorize")))

	opts := server.Options{
		BaseURL:     cfg.BaseURL,
		Secret:      cfg.Secret,
		SessionTTL:  cfg.SessionTTL,
		Categorizer: categorizer,
	}

	if cfg.GoogleEnabled() {
		opts.Google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/auth/google/callback")
		logger.Info("google sign-in enabled")
	}

	if cfg.EventsEnabled() {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger.With("component", "amqp"))
		if err != nil {
			return err
		}
		defer pub.Close()
		opts.Publisher = pub
		logger.Info("publishing events", "exchange", cfg.AMQPExchange)
	}

	if cfg.SheetsEnabled() {
		w, err := export.NewSheetsWriter(ctx, cfg.SheetsCredentialsFile, cfg.SpreadsheetID, logger.With("component", "sheets"))
		if err != nil {
			return err
		}
		opts.Sheets = w
	}

	if cfg.PushEnabled() {
		opts.Push = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
		logger.Info("web push enabled")
	}

	srv := server.New(db, opts, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("kinkeeper running", "addr", cfg.BaseURL, "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return srv.RateLimiter().Run(gctx, cleanupInterval)
	})

	g.Go(func() error {
		return expireSessions(gctx, srv.SessionStore())
	})

	if n := srv.Notifier(); n != nil {
		g.Go(func() error {
			return n.Run(gctx)
		})
	}

	if cfg.BackupEnabled() && cfg.BackupInterval > 0 {
		m := backup.NewManager(backupConfig(), db, logger.With("component", "backup"))
		logger.Info("scheduled backups enabled", "interval", cfg.BackupInterval, "bucket", cfg.S3Bucket)
		g.Go(func() error {
			return m.Loop(gctx, cfg.BackupInterval)
		})
	}

	return g.Wait()
}

func expireSessions(ctx context.Context, sessions *store.SessionStore) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := sessions.DeleteExpired()
			if err != nil {
				logger.Error("delete expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("deleted expired sessions", "count", n)
			}
		}
	}
}
