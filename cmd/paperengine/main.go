package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"papertrade-enginev1/config"
	"papertrade-enginev1/internal/api"
	"papertrade-enginev1/internal/engine"
	"papertrade-enginev1/internal/events"
	"papertrade-enginev1/internal/logger"
	"papertrade-enginev1/internal/metrics"
	"papertrade-enginev1/internal/model"
	"papertrade-enginev1/internal/quote"
	"papertrade-enginev1/internal/scheduler"
	sqlitestore "papertrade-enginev1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("paperengine", slog.LevelInfo)
	log.Println("[paperengine] starting...")

	cfg := config.Load()

	// ---- Metrics & health ----
	prom := metrics.New(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite store ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." && cfg.SQLitePath != ":memory:" {
		os.MkdirAll(dir, 0o755)
	}
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[paperengine] sqlite init failed: %v", err)
	}
	defer store.Close()
	health.CheckSQLite(ctx, store.DB())
	log.Println("[paperengine] sqlite store ready")

	// ---- Quote source ----
	var provider model.QuoteProvider
	if cfg.QuoteWSURL != "" {
		feed := quote.NewFeed(quote.FeedConfig{URL: cfg.QuoteWSURL, MaxAge: cfg.QuoteMaxAge})
		go feed.Run(ctx)
		provider = feed
		log.Printf("[paperengine] streaming quotes from %s", cfg.QuoteWSURL)
	} else {
		static := quote.NewStaticProvider()
		seedQuotes(static, getEnv("SIM_QUOTES", "AAPL:185.50,MSFT:420.00,GOOG:175.25,TSLA:250.00,SPY:560.00"))
		provider = static
		log.Println("[paperengine] no QUOTE_WS_URL set, serving simulated quotes")
	}

	if cfg.RedisAddr != "" {
		cache, err := quote.NewCache(quote.CacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      cfg.QuoteTTL,
		}, provider)
		if err != nil {
			log.Printf("[paperengine] WARNING: quote cache init failed: %v (continuing uncached)", err)
		} else {
			defer cache.Close()
			provider = cache
		}
	}
	provider = &quote.TimeoutProvider{Inner: provider, Timeout: cfg.QuoteTimeout}

	// ---- Event publisher (optional) ----
	var pub *events.Publisher
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[paperengine] WARNING: redis ping failed: %v (continuing without events)", err)
			health.SetRedisConnected(false)
		} else {
			pub = events.NewPublisher(client)
			health.SetRedisConnected(true)
			defer client.Close()
			log.Println("[paperengine] event publisher ready")
		}
	}

	// ---- Engine ----
	eng := engine.New(engine.Config{
		Store:  store,
		Quotes: provider,
		Events: pub,
		Prom:   prom,
	})

	// ---- Scheduler loops ----
	sched := scheduler.New(eng, store, prom, scheduler.Config{
		RefreshInterval:     cfg.RefreshInterval,
		RefreshIntervalSlow: cfg.RefreshIntervalSlow,
		MonitorInterval:     cfg.MonitorInterval,
		MonitorIntervalSlow: cfg.MonitorIntervalSlow,
	})
	sched.Start(ctx)
	health.SetSchedulerUp(true)

	// ---- Periodic liveness checks ----
	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				health.CheckSQLite(ctx, store.DB())
			}
		}
	}()

	// ---- REST API ----
	mux := http.NewServeMux()
	api.RegisterRoutes(mux, eng, store, health)
	apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: mux}
	go func() {
		log.Printf("[paperengine] api listening on %s", cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[paperengine] api server: %v", err)
		}
	}()

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[paperengine] shutting down...")

	health.SetSchedulerUp(false)
	sched.Stop()
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	apiSrv.Shutdown(shutCtx)
	metricsSrv.Stop(shutCtx)

	log.Println("[paperengine] stopped")
}

// seedQuotes parses "SYM:price,SYM:price" into the static provider.
func seedQuotes(p *quote.StaticProvider, spec string) {
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			log.Printf("[paperengine] skipping invalid SIM_QUOTES entry: %q", entry)
			continue
		}
		price, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || price <= 0 {
			log.Printf("[paperengine] skipping invalid SIM_QUOTES price: %q", entry)
			continue
		}
		p.SetPrice(strings.ToUpper(strings.TrimSpace(parts[0])), price)
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
