package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dealhound/dealfeed/internal/api"
	"github.com/dealhound/dealfeed/internal/config"
	"github.com/dealhound/dealfeed/internal/source"
	"github.com/dealhound/dealfeed/internal/source/aliexpress"
	"github.com/dealhound/dealfeed/internal/source/banggood"
	"github.com/dealhound/dealfeed/internal/source/sheets"
)

func main() {
	slog.Info("Starting dealfeed server...")

	// Local development convenience; production gets real env vars.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	sources, err := buildSources(context.Background(), cfg)
	if err != nil {
		slog.Error("Critical error initializing sources", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(cfg, sources)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port, "sources", len(sources))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

// buildSources constructs every adapter the configuration enables. Order
// matters: the curated spreadsheet goes first so it wins deduplication
// against the live merchant APIs.
func buildSources(ctx context.Context, cfg *config.Config) ([]source.Source, error) {
	var sources []source.Source

	if cfg.SheetsEnabled() {
		adapter, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID: cfg.SheetID,
			Ranges:        cfg.SheetRanges,
			APIKey:        cfg.GoogleAPIKey,
			PublishedURL:  cfg.SheetPublishedURL,
			CacheTTL:      cfg.SheetCacheTTL,
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, adapter)
		slog.Info("Spreadsheet source enabled")
	}

	if cfg.AliExpressEnabled() {
		sources = append(sources, aliexpress.New(aliexpress.Config{
			AppKey:     cfg.AliExpressAppKey,
			AppSecret:  cfg.AliExpressAppSecret,
			TrackingID: cfg.AliExpressTrackingID,
		}))
		slog.Info("AliExpress source enabled")
	}

	if cfg.BanggoodEnabled() {
		sources = append(sources, banggood.New(banggood.Config{
			APIKey:    cfg.BanggoodAPIKey,
			APISecret: cfg.BanggoodAPISecret,
		}))
		slog.Info("Banggood source enabled")
	}

	return sources, nil
}
