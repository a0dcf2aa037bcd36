package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/stormsniper/engine/internal/adapters"
	"github.com/stormsniper/engine/internal/alpha"
	"github.com/stormsniper/engine/internal/config"
	"github.com/stormsniper/engine/internal/execution"
	"github.com/stormsniper/engine/internal/observ"
	"github.com/stormsniper/engine/internal/orchestrator"
	"github.com/stormsniper/engine/internal/portfolio"
	"github.com/stormsniper/engine/internal/risk"
	"github.com/stormsniper/engine/internal/timeseries"
	"github.com/stormsniper/engine/internal/weather"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		observ.Log("fatal", map[string]any{"error": err.Error()})
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "config/config.yaml", "path to YAML config")
		mode       = flag.String("mode", "", "override trading mode (paper|live)")
		oneshot    = flag.Bool("oneshot", false, "run a single scan cycle and print the result")
		paused     = flag.Bool("paused", false, "start with the global pause engaged")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.TradingMode = *mode
	}

	observ.SetVersion(version)
	observ.Log("startup", map[string]any{
		"version": version,
		"mode":    cfg.TradingMode,
		"config":  *configPath,
	})

	orch, book, err := wire(cfg)
	if err != nil {
		return err
	}
	if *paused || cfg.GlobalPause {
		orch.SetGlobalPause(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *oneshot {
		return runOnce(ctx, orch)
	}

	if cfg.Server.Enabled {
		startServer(cfg.Server.Addr, orch)
	}

	runLoops(ctx, cfg, orch)

	if err := book.Save(); err != nil {
		observ.Log("shutdown_save_failed", map[string]any{"error": err.Error()})
	}
	observ.Log("shutdown", nil)
	return nil
}

// wire builds the full dependency graph from config. Paper mode swaps only
// the executor; everything upstream of order submission is identical.
func wire(cfg config.Root) (*orchestrator.Orchestrator, *portfolio.Book, error) {
	loc := cfg.Location()

	book := portfolio.NewBook(cfg.Portfolio.StatePath, cfg.Portfolio.Bankroll, loc)
	if err := book.Load(); err != nil {
		return nil, nil, fmt.Errorf("load portfolio state: %w", err)
	}

	prices := timeseries.NewStore(0)

	wx := adapters.NewMultiSourceWeather(cfg.Weather,
		adapters.NewOpenMeteoSource(cfg.Weather),
		adapters.NewMetNoSource(cfg.Weather, os.Getenv("METNO_USER_AGENT")),
	)

	markets := adapters.NewPolymarketData(cfg.Market)

	var executor adapters.OrderExecutor
	switch cfg.TradingMode {
	case "live":
		ec := cfg.Executor
		if ec.APIKey == "" {
			ec.APIKey = os.Getenv("CLOB_API_KEY")
			ec.APISecret = os.Getenv("CLOB_API_SECRET")
			ec.APIPassphrase = os.Getenv("CLOB_API_PASSPHRASE")
		}
		clob, err := adapters.NewClobExecutor(ec)
		if err != nil {
			return nil, nil, err
		}
		executor = clob
	default:
		executor = adapters.NewPaperExecutor(0, 0)
	}

	mapper := alpha.NewKeywordMapper(cfg.LocationNames())

	deps := orchestrator.Deps{
		Weather:   wx,
		MarketPv:  markets,
		Executor:  executor,
		Analyzer:  weather.NewAnalyzer(weather.AnalyzerConfig{}),
		Engine:    alpha.NewEngine(cfg.Alpha, mapper),
		Mapper:    mapper,
		VolScaler: risk.NewVolatilityScaler(prices, cfg.Volatility),
		MCGuard:   risk.NewMonteCarloGuard(cfg.MonteCarlo, nil),
		Drawdown:  risk.NewDrawdownManager(cfg.Drawdown, loc),
		Book:      book,
		Prices:    prices,
		ExitEval:  execution.NewExitEvaluator(prices, cfg.Exit),
		SizerCfg:  cfg.Sizer,
		EntryCfg:  cfg.Entry,
	}

	ocfg := orchestrator.Config{
		Locations:       cfg.Locations,
		Keywords:        cfg.Markets.Keywords,
		BroadenKeywords: cfg.Markets.BroadenKeywords,
		MinCandidates:   cfg.Markets.MinCandidates,
		DailyTradeCap:   cfg.Markets.DailyTradeCap,
		MinPositionSize: cfg.Markets.MinPositionSize,
		MarketFilters: adapters.ListFilters{
			ActiveOnly: true,
			MinVolume:  cfg.Markets.MinVolume24h,
			Limit:      cfg.Markets.ListLimit,
		},
	}

	return orchestrator.New(ocfg, deps), book, nil
}

func runOnce(ctx context.Context, orch *orchestrator.Orchestrator) error {
	result, err := orch.Scan(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// runLoops drives scan and monitor on independent tickers until the
// context is cancelled. Scan fires its own FIRE decisions; monitor closes
// positions that hit an exit trigger.
func runLoops(ctx context.Context, cfg config.Root, orch *orchestrator.Orchestrator) {
	scanTick := time.NewTicker(time.Duration(cfg.Scheduling.ScanIntervalSeconds) * time.Second)
	defer scanTick.Stop()
	monitorTick := time.NewTicker(time.Duration(cfg.Scheduling.MonitorIntervalSeconds) * time.Second)
	defer monitorTick.Stop()

	scanAndFire(ctx, orch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTick.C:
			scanAndFire(ctx, orch)
		case <-monitorTick.C:
			outcomes := orch.Monitor(ctx)
			for _, out := range outcomes {
				if out.Err != "" {
					observ.Log("monitor_close_failed", map[string]any{
						"entry_id": out.EntryID,
						"error":    out.Err,
					})
				}
			}
		}
	}
}

func scanAndFire(ctx context.Context, orch *orchestrator.Orchestrator) {
	result, err := orch.Scan(ctx)
	if err != nil {
		observ.Log("scan_failed", map[string]any{"error": err.Error()})
		return
	}
	if result.Blocked {
		return
	}
	for _, d := range result.Decisions {
		if d.Recommendation != alpha.Fire || d.Entry == nil {
			continue
		}
		if err := orch.Fire(ctx, *d.Entry); err != nil {
			observ.Log("fire_failed", map[string]any{
				"market_id": d.MarketID,
				"error":     err.Error(),
			})
		}
	}
}

func startServer(addr string, orch *orchestrator.Orchestrator) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observ.Handler())
	mux.Handle("/health", observ.Health())
	mux.Handle("/healthz", observ.HealthHandler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orch.CurrentStatus())
	})
	mux.HandleFunc("/pause", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		orch.SetGlobalPause(r.URL.Query().Get("state") != "off")
		w.WriteHeader(http.StatusNoContent)
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	observ.Log("server_started", map[string]any{"addr": addr})
}
