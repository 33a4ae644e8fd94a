package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantforge/strategy-optimizer/internal/cache"
	"github.com/quantforge/strategy-optimizer/internal/monitoring"
	"github.com/quantforge/strategy-optimizer/internal/optimizer"
	"github.com/quantforge/strategy-optimizer/internal/simulate"
	"github.com/quantforge/strategy-optimizer/internal/storage/postgres"
	"github.com/quantforge/strategy-optimizer/internal/strategy"
	"github.com/quantforge/strategy-optimizer/pkg/config"
	"github.com/quantforge/strategy-optimizer/pkg/data"
	"github.com/quantforge/strategy-optimizer/pkg/reporting"
)

const (
	appName    = "Strategy Optimizer"
	appVersion = "1.3.0"

	pollInterval = 500 * time.Millisecond
)

// cliFlags overrides config-file values from the command line. Zero values
// mean "keep what the file says".
type cliFlags struct {
	configPath  string
	envFile     string
	symbol      string
	timeframe   string
	strategy    string
	dataSource  string
	rangeDays   int
	maxCombos   int
	redisAddr   string
	postgresDSN string
	metricsAddr string
	excelOut    string
}

func main() {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", "configs/optimizer.json", "path to the run configuration file")
	flag.StringVar(&flags.envFile, "env", "", "path to a .env file (default: .env in the working directory)")
	flag.StringVar(&flags.symbol, "symbol", "", "override the configured symbol")
	flag.StringVar(&flags.timeframe, "timeframe", "", "override the configured timeframe")
	flag.StringVar(&flags.strategy, "strategy", "", "override the configured strategy")
	flag.StringVar(&flags.dataSource, "data", "", "override the data source (csv path, mt5 or bybit)")
	flag.IntVar(&flags.rangeDays, "range-days", 0, "override the history range in days")
	flag.IntVar(&flags.maxCombos, "max-combos", 0, "override the grid expansion cap")
	flag.StringVar(&flags.redisAddr, "redis", "", "redis address for the persistent evaluation cache")
	flag.StringVar(&flags.postgresDSN, "postgres", "", "postgres DSN for the session ledger")
	flag.StringVar(&flags.metricsAddr, "metrics-addr", "", "listen address for the Prometheus endpoint")
	flag.StringVar(&flags.excelOut, "excel", "", "write results to this .xlsx path")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		return
	}

	var envErr error
	if flags.envFile != "" {
		envErr = godotenv.Load(flags.envFile)
	} else {
		envErr = godotenv.Load()
	}
	if envErr != nil {
		// A missing .env file is the normal case outside local development.
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(flags); err != nil {
		log.Fatal().Err(err).Msg("optimizer run failed")
	}
}

func run(flags cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, flags)
	excelOut := flags.excelOut

	ctx := context.Background()

	bars, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	var persistent optimizer.PersistentCache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedis(cfg.RedisAddr, os.Getenv("OPTIMIZER_REDIS_PASSWORD"), 0)
		defer rc.Close()
		persistent = rc
		log.Info().Str("addr", cfg.RedisAddr).Msg("persistent evaluation cache enabled")
	}

	var ledger optimizer.Ledger
	if cfg.PostgresDSN != "" {
		pool, perr := postgres.NewPool(ctx, cfg.PostgresDSN)
		if perr != nil {
			return fmt.Errorf("connect postgres: %w", perr)
		}
		defer pool.Close()
		pg := postgres.NewLedger(pool)
		if ierr := pg.Init(ctx); ierr != nil {
			return fmt.Errorf("init postgres schema: %w", ierr)
		}
		ledger = pg
		log.Info().Msg("session ledger enabled")
	}

	health := monitoring.NewHealthChecker()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, health)
	}

	eval := optimizer.NewEvaluator(
		optimizer.NewEvalCache(persistent),
		strategy.Registry(),
		simulate.Run,
		simulate.Summarize,
	)
	controller := optimizer.NewController(bars, eval, ledger).WithHealth(health)

	req, err := cfg.SessionRequest()
	if err != nil {
		return err
	}

	sessionID, err := controller.StartSession(ctx, req)
	if err != nil {
		return err
	}
	log.Info().
		Str("session", sessionID).
		Str("symbol", cfg.Symbol).
		Str("strategy", cfg.Strategy).
		Msg("optimization session started")

	session, err := waitForSession(controller, sessionID)
	if err != nil {
		return err
	}

	results, ok := controller.GetResults(sessionID)
	if !ok {
		return fmt.Errorf("session %s completed without results", sessionID)
	}

	reporting.NewConsoleReporter().PrintResults(session, results)

	if excelOut != "" {
		if err := reporting.NewExcelReporter().WriteResultsXLSX(session, results, excelOut); err != nil {
			return fmt.Errorf("write excel report: %w", err)
		}
		log.Info().Str("path", excelOut).Msg("excel report written")
	}
	return nil
}

// waitForSession polls the controller until the session reaches a terminal
// state, echoing progress transitions along the way.
func waitForSession(controller *optimizer.Controller, sessionID string) (optimizer.Session, error) {
	lastLabel := ""
	for {
		session, ok := controller.GetSession(sessionID)
		if !ok {
			return optimizer.Session{}, fmt.Errorf("session %s vanished", sessionID)
		}

		if session.Progress.Label != lastLabel && session.Progress.Label != "" {
			lastLabel = session.Progress.Label
			log.Info().
				Str("phase", session.Progress.Phase).
				Float64("pct", session.Progress.Pct).
				Msg(session.Progress.Label)
		}

		switch session.Status {
		case optimizer.StatusCompleted:
			return session, nil
		case optimizer.StatusFailed:
			return session, fmt.Errorf("session failed: %s", session.Error)
		}
		time.Sleep(pollInterval)
	}
}

// applyOverrides folds non-empty CLI flags over the loaded config. A -data
// value that is neither "mt5" nor "bybit" is taken as a CSV file path.
func applyOverrides(cfg *config.RunConfig, flags cliFlags) {
	if flags.symbol != "" {
		cfg.Symbol = flags.symbol
	}
	if flags.timeframe != "" {
		cfg.Timeframe = flags.timeframe
	}
	if flags.strategy != "" {
		cfg.Strategy = flags.strategy
	}
	if flags.dataSource != "" {
		switch flags.dataSource {
		case "mt5", "bybit":
			cfg.DataSource = flags.dataSource
		default:
			cfg.DataSource = "csv"
			cfg.DataPath = flags.dataSource
		}
	}
	if flags.rangeDays > 0 {
		cfg.RangeDays = flags.rangeDays
	}
	if flags.maxCombos > 0 {
		cfg.MaxCombos = flags.maxCombos
	}
	if flags.redisAddr != "" {
		cfg.RedisAddr = flags.redisAddr
	}
	if flags.postgresDSN != "" {
		cfg.PostgresDSN = flags.postgresDSN
	}
	if flags.metricsAddr != "" {
		cfg.MetricsAddr = flags.metricsAddr
	}
}

func buildProvider(cfg *config.RunConfig) (optimizer.BarProvider, error) {
	switch cfg.DataSource {
	case "csv":
		return data.NewCSVProvider(cfg.DataPath), nil
	case "mt5":
		return data.NewMT5Provider(cfg.MT5BridgeURL), nil
	case "bybit", "":
		return data.NewBybitProvider(cfg.BybitCategory), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}

func serveMetrics(addr string, health *monitoring.HealthChecker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", health)
	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics endpoint stopped")
	}
}
