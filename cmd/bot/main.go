package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"CorridorBot/internal/config"
	"CorridorBot/internal/engine"
	"CorridorBot/internal/executor"
	"CorridorBot/internal/governor"
	"CorridorBot/internal/guard"
	"CorridorBot/internal/metrics"
	"CorridorBot/internal/notifier"
	"CorridorBot/internal/pricing"
	"CorridorBot/internal/scheduler"
	"CorridorBot/internal/treasury"
	"CorridorBot/internal/wallet"
)

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLog := newLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg.LogLevel)
	log.Info().Str("config", cfgPath).Msg("CorridorBot starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	// Signing keypair
	owner, err := wallet.Load(cfg.Wallet.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("load wallet")
	}
	log.Info().Str("wallet", owner.PublicKey().String()).Msg("wallet loaded")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pricing: token decimals, quote client, rate aggregator
	registry := pricing.LoadRegistry(ctx, cfg.Trade.TokensURL, cfg.Mints.SOL,
		[]string{cfg.Mints.GC, cfg.Mints.USDC, cfg.Mints.USDT, cfg.Mints.SOL}, log)
	quotes := pricing.NewClient(cfg.Trade.SwapHost, cfg.Trade.APIHost, cfg.Limits.SlippageBps, registry)
	rates := pricing.NewAggregator(quotes, cfg.Mints.GC, cfg.Mints.USDC, cfg.Mints.SOL,
		cfg.Health.TwapSamples, cfg.Health.TwapPause, log)

	// Balance snapshot over RPC
	rpcClient := rpc.New(cfg.RPC.URL)
	balances, err := treasury.NewReader(rpcClient, owner.PublicKey(), cfg.Mints.GC, cfg.Mints.USDC, cfg.Mints.USDT)
	if err != nil {
		log.Fatal().Err(err).Msg("init balance reader")
	}

	// Daily governor over SQLite
	if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("create data dir")
		}
	}
	store, err := governor.OpenStore(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open governor store")
	}
	defer store.Close()
	gov := governor.New(store, cfg.Limits.DailyMaxBps)

	// Health guard and execution router
	hg := guard.New(quotes, cfg.Mints.GC, cfg.Mints.USDC,
		cfg.Health.MaxPriceImpactBps, cfg.Health.MaxSpotVsTwapBps)
	router := executor.NewRouter(quotes, rpcClient, owner,
		cfg.Mints.GC, cfg.Mints.USDC, cfg.Mints.SOL,
		cfg.Relay.JitoURL, cfg.Relay.JitoAuth, log)

	// Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)

	// Metrics endpoint
	metricsSrv := metrics.Serve(cfg.Metrics.Addr)
	defer metricsSrv.Close()
	log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics serving")

	params := engine.Params{
		USDLower:        cfg.Band.USDLower,
		USDUpper:        cfg.Band.USDUpper,
		CapBps:          cfg.Limits.CapBps,
		TreasuryGCMin:   cfg.Limits.TreasuryGCMin,
		VaultStableMin:  cfg.Limits.VaultStableMin,
		PreferredStable: cfg.Limits.PreferredStable,
		USDCMint:        cfg.Mints.USDC,
		USDTMint:        cfg.Mints.USDT,
	}

	sched := scheduler.NewScheduler(ctx, balances, rates, hg, router, gov, store, tn, params, log)
	if err := sched.Register(cfg.Schedule.CycleCron); err != nil {
		log.Fatal().Err(err).Msg("register cycle schedule")
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)

	if cfg.Schedule.RunOnStart {
		log.Info().Msg("run_on_start enabled, executing cycle now")
		go sched.RunNow()
	}

	log.Info().Str("schedule", cfg.Schedule.CycleCron).Bool("relay", cfg.Relay.JitoURL != "").
		Int64("slippage_bps", cfg.Limits.SlippageBps).Msg("CorridorBot running")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	log.Info().Msg("CorridorBot stopped")
}
