package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/capital-weather-dashboard/internal/cache"
	"github.com/kjstillabower/capital-weather-dashboard/internal/client"
	"github.com/kjstillabower/capital-weather-dashboard/internal/config"
	"github.com/kjstillabower/capital-weather-dashboard/internal/dashboard"
	httphandler "github.com/kjstillabower/capital-weather-dashboard/internal/http"
	"github.com/kjstillabower/capital-weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
	"github.com/kjstillabower/capital-weather-dashboard/internal/service"
)

const inFlightCheckInterval = 50 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.WeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY not set; weather lookups will fail until it is configured")
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), cfg.OTLPEndpoint, cfg.OTLPInsecure)
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}
	if cfg.OTLPEndpoint != "" {
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	}

	var fetchCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	var memoryCache *cache.InMemoryCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		fetchCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		memoryCache = cache.NewInMemoryCache()
		fetchCache = memoryCache
		logger.Info("cache backend: in_memory")
	}

	countriesClient := client.NewRestCountriesClient(cfg.CountriesURL, cfg.CountriesTimeout, fetchCache,
		client.FetchPolicy{Enabled: cfg.CountriesCacheEnabled, TTL: cfg.CountriesCacheTTL})
	weatherClient := client.NewOpenWeatherClient(cfg.WeatherAPIURL, cfg.WeatherAPITimeout, fetchCache,
		client.FetchPolicy{Enabled: cfg.WeatherCacheEnabled, TTL: cfg.WeatherCacheTTL})

	countryService := service.NewCountryService(countriesClient)
	weatherService := service.NewWeatherService(weatherClient, service.WeatherOptions{APIKey: cfg.WeatherAPIKey})

	if cfg.CountriesWarmOnStart {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), cfg.CountriesTimeout)
		warmCtx = observability.WithLogger(warmCtx, logger)
		if err := countryService.Warm(warmCtx); err != nil {
			logger.Warn("country directory warming failed", zap.Error(err))
		}
		warmCancel()
	}

	var backend dashboard.Backend
	if cfg.DashboardAPIBaseURL != "" {
		backend = dashboard.NewAPIClient(cfg.DashboardAPIBaseURL, cfg.RequestTimeout)
		logger.Info("dashboard backend: api", zap.String("base_url", cfg.DashboardAPIBaseURL))
	} else {
		backend = dashboard.NewLocalBackend(countryService, weatherService)
		logger.Info("dashboard backend: local")
	}
	renderer, err := dashboard.NewRenderer()
	if err != nil {
		logger.Fatal("dashboard templates", zap.Error(err))
	}
	store := dashboard.NewStore(backend, cfg.DashboardDefaultCountry, cfg.DashboardSessionTTL)

	healthConfig := &httphandler.HealthConfig{WeatherKeyConfigured: cfg.WeatherAPIKey != ""}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(countryService, weatherService, healthConfig, logger)
	pages := httphandler.NewPageHandler(store, renderer, logger)
	router := httphandler.NewRouter(handler, pages, logger, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		lifecycle.MarkStarted(time.Now())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fields := []zap.Field{zap.Int("dashboard_sessions", store.Len())}
		if memoryCache != nil {
			fields = append(fields, zap.Int("fetch_cache_entries", memoryCache.Len()))
		}
		logger.Info("graceful shutdown triggered", fields...)
		lifecycle.SetShuttingDown(true)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}

		logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
		if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
		}

		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := observability.FlushTelemetry(flushCtx, logger, shutdownTracing); err != nil {
			logger.Error("telemetry flush", zap.Error(err))
		}

		if memcacheCloser != nil {
			if err := memcacheCloser.Close(); err != nil {
				logger.Error("memcached close", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
