// Sentinel - Regime-Following Futures Bot for WEEX
//
// The bot polls the contract ticker, classifies the market regime from
// short-window volatility and returns, and trades trends with tiered exits:
//
// 1. Poll ticker into a rolling window
// 2. Compute returns, volatility, stability, tick ATR
// 3. Classify regime (trend / range / compression / expansion)
// 4. Gate by confidence, spike cooldown and drawdown
// 5. Enter with stop + TP1/TP2 tiers, trail the runner
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/0xvaler/sentinel/internal/alert"
	"github.com/0xvaler/sentinel/internal/bot"
	"github.com/0xvaler/sentinel/internal/config"
	"github.com/0xvaler/sentinel/internal/dashboard"
	"github.com/0xvaler/sentinel/internal/exchange"
	"github.com/0xvaler/sentinel/internal/storage"
)

const version = "1.2.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Exchange.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Str("symbol", cfg.Exchange.Symbol).
		Int("leverage", cfg.Exchange.Leverage).
		Bool("dry_run", cfg.Exchange.DryRun).
		Msg("⚡ Sentinel starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database (optional, DSN empty disables)
	db, err := storage.New(cfg.Storage.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// ====== CORE COMPONENTS ======

	// 1. WEEX execution adapter
	opts := []exchange.Option{
		exchange.WithDryRun(cfg.Exchange.DryRun),
		exchange.WithTimeout(cfg.RequestTimeout()),
	}
	if cfg.Exchange.BaseURL != "" {
		opts = append(opts, exchange.WithBaseURL(cfg.Exchange.BaseURL))
	}
	adapter := exchange.NewWeexClient(cfg.APIKey, cfg.SecretKey, cfg.Passphrase, opts...)
	log.Info().Str("base_url", cfg.Exchange.BaseURL).Msg("🔌 WEEX adapter ready")

	// 2. Telegram alerts (nil when unconfigured)
	notifier := alert.NewNotifier(cfg.TelegramToken, cfg.TelegramChat)

	// 3. Dashboard (nil when port is 0)
	dash := dashboard.NewServer(cfg.Dashboard.Port)
	dash.Start()

	// 4. Trading loop
	trader := bot.New(cfg, adapter, db, notifier, dash)

	// ====== STARTUP COMPLETE ======
	if cfg.Exchange.DryRun {
		log.Info().Msg("╔══════════════════════════════════════════╗")
		log.Info().Msg("║   DRY RUN - no orders reach the exchange ║")
		log.Info().Msg("╚══════════════════════════════════════════╝")
	}

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	if err := trader.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Trading loop failed")
	}

	dash.Stop()
	log.Info().Msg("👋 Sentinel stopped")
}
