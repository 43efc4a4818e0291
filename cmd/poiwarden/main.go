package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/poiwarden/server/internal/config"
	"github.com/poiwarden/server/internal/data"
	"github.com/poiwarden/server/internal/gateway"
	"github.com/poiwarden/server/internal/handler"
	"github.com/poiwarden/server/internal/ingress"
	"github.com/poiwarden/server/internal/persist"
	"github.com/poiwarden/server/internal/resolver"
	"github.com/poiwarden/server/internal/scripting"
	"github.com/poiwarden/server/internal/system"
	"github.com/poiwarden/server/internal/territory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            poiwarden  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      POI territory arbitration bot        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main service logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("POIWARDEN_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	// 3. Connect to PostgreSQL and run migrations
	printSection("Database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("Migrations applied")
	fmt.Println()

	linkRepo := persist.NewLinkRepo(db)

	// 4. Load the POI catalog
	printSection("Catalog")

	catalog, err := data.LoadPOITable("data/yaml/poi_list.yaml",
		cfg.Claims.ClaimRadius, cfg.Claims.IntrusionRadius)
	if err != nil {
		return fmt.Errorf("load poi table: %w", err)
	}
	printStat("POIs", catalog.Count())

	poiResolver := resolver.New(catalog, cfg.Resolver.MinScore)

	// 5. Lua claim policy (optional scripts)
	policy, err := scripting.NewEngine("scripts", log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer policy.Close()
	printOK("Policy scripts loaded")
	fmt.Println()

	// 6. Gateway client and territory engine
	gw := gateway.New(cfg.Gateway, log)
	engine := territory.New(catalog, cfg.Claims, gw, linkRepo, policy, log)

	h := handler.New(handler.Deps{
		Engine:       engine,
		Resolver:     poiResolver,
		Links:        linkRepo,
		Log:          log,
		DedupeWindow: cfg.Claims.DedupeWindow,
	})

	// 7. Webhook ingress
	srv, err := ingress.New(cfg.Server.BindAddress, cfg.Server.WebhookSecret, h, gw, log)
	if err != nil {
		return fmt.Errorf("ingress: %w", err)
	}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()

	// 8. Periodic systems
	runner := system.NewRunner()
	runner.Register(system.NewSnapshotSystem(engine, gw, cfg.Claims.SnapshotInterval, log))
	runner.Register(system.NewProximitySystem(engine, cfg.Claims.SweepInterval))
	runner.Register(system.NewExpirySystem(engine, cfg.Claims.ExpiryInterval))
	runner.Register(system.NewResetSystem(engine))

	printSection("Service ready")
	printReady(fmt.Sprintf("Webhook listening on %s", cfg.Server.BindAddress))
	printReady(fmt.Sprintf("Next global reset at %s", engine.NextReset().UTC().Format(time.RFC3339)))
	fmt.Println()

	log.Info("service started",
		zap.String("bind", cfg.Server.BindAddress),
		zap.Time("next_reset", engine.NextReset()),
	)

	// 9. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	const tick = time.Second
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runner.Tick(tick)
		case err := <-srvErr:
			if err != nil {
				return fmt.Errorf("ingress server: %w", err)
			}
			return nil
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("ingress shutdown", zap.Error(err))
			}
			log.Info("service stopped")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
