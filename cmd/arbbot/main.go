package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/bot"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/chains/ethereum"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/config"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/executor"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/notifier"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/profit"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/quote"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/registry"
	"github.com/mik3dev/Flashloan-Arbitrage-V2-BOT/reporter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultSwapEventBufferSize    = 100
	DefaultNotificationBufferSize = 16
)

func main() {
	close := func() {
		os.Exit(1)
	}

	env, err := config.LoadEnv(".env")
	if err != nil {
		slog.Error("Failed to load environment", "error", err)
		close()
	}

	// create the log handler
	rootLogHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: env.LogLevel})
	rootLogger := slog.New(rootLogHandler)

	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		close()
	}
	rootLogger.Info("Configuration loaded",
		"name", cfg.Name,
		"token", cfg.DefaultToken.Symbol,
		"amount_in", cfg.DefaultToken.AmountIn.String(),
		"forward", cfg.Forward.TokenPath(),
		"backward", cfg.Backward.TokenPath(),
		"merge_mode", cfg.MergeMode,
		"quote_source", cfg.QuoteSource,
		"dry_run", cfg.DryRun,
	)

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prometheusRegistry := prometheus.NewRegistry()
	prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if env.MetricsAddr != "" {
		go serveMetrics(ctx, env.MetricsAddr, prometheusRegistry, rootLogger.With("component", "metrics"))
	}

	var clientOpts []ethereum.Option
	if cfg.QuoteSource == config.QuoteSourceReserves {
		clientOpts = append(clientOpts, ethereum.WithReserveQuoting())
	}
	client, err := ethereum.Dial(ctx, env.WebsocketURL, rootLogger.With("component", "ethereum-client"), clientOpts...)
	if err != nil {
		rootLogger.Error("Failed to connect to node", "error", err)
		close()
	}
	defer client.Close()

	reg, err := registry.Build(ctx, client, cfg.Forward, cfg.Backward)
	if err != nil {
		rootLogger.Error("Failed to bind venues", "error", err)
		close()
	}

	quoteEngine, err := quote.NewEngine(quote.Config{
		Routers:   reg,
		MergeMode: cfg.MergeMode,
		Timeout:   cfg.QuoteTimeout,
		Logger:    rootLogger.With("component", "quote-engine"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize quote engine", "error", err)
		close()
	}

	var trader chains.FlashTrader
	if !cfg.DryRun {
		trader, err = ethereum.NewFlashSwap(ctx, client, env.FlashContract, env.PrivateKey)
		if err != nil {
			rootLogger.Error("Failed to bind flash-swap contract", "error", err)
			close()
		}
	}
	exec, err := executor.New(executor.Config{
		Trader:         trader,
		Logger:         rootLogger.With("component", "executor"),
		ConfirmTimeout: cfg.ConfirmTimeout,
		DryRun:         cfg.DryRun,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize executor", "error", err)
		close()
	}

	rep, err := reporter.New(reporter.Config{
		Balances: client,
		Account:  env.Account(),
		Token:    cfg.DefaultToken.Token,
		GasLimit: cfg.GasLimit,
		GasPrice: cfg.GasPrice,
		Logger:   rootLogger.With("component", "reporter"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize reporter", "error", err)
		close()
	}

	var sink chains.Notifier = notifier.Noop{}
	if tg := notifier.NewTelegram(notifier.TelegramConfig{
		BotToken: env.TelegramBotToken,
		ChatID:   env.TelegramChatID,
	}); tg != nil {
		async := notifier.NewAsync(tg, rootLogger.With("component", "notifier"), DefaultNotificationBufferSize)
		defer async.Close()
		sink = async
	}

	arb, err := bot.New(bot.Config{
		Registry:  reg,
		Quoter:    quoteEngine,
		Evaluator: profit.Evaluator{MinProfit: cfg.MinProfit},
		Trader:    exec,
		Reporter:  rep,
		Notifier:  sink,
		Token:     cfg.DefaultToken,
		Metrics:   bot.NewMetrics(prometheusRegistry),
		Logger:    rootLogger.With("component", "bot"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize bot", "error", err)
		close()
	}

	subscriber, err := ethereum.NewSwapSubscriber(ethereum.SwapSubscriberConfig{
		URL:        env.WebsocketURL,
		Logger:     rootLogger.With("component", "swap-subscriber"),
		BufferSize: DefaultSwapEventBufferSize,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize swap subscriber", "error", err)
		close()
	}
	events, errs := subscriber.Subscribe(ctx, reg.Pairs())
	go func() {
		for err := range errs {
			rootLogger.Warn("Swap subscription error", "error", err)
		}
	}()

	go ethereum.WatchFlashEvents(ctx, env.WebsocketURL, nil, env.FlashContract, rootLogger.With("component", "flash-events"))

	rootLogger.Info("Bot started", "pairs", len(reg.Pairs()), "account", env.Account().Hex())
	if err := arb.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
		rootLogger.Error("Bot stopped", "error", err)
	}
	rootLogger.Info("Bot shut down", "dropped_events", arb.Dropped())
}

func loadConfig() (*config.BotConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}

func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed", "error", err)
	}
}
