// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/opentrusty/storefront/internal/account"
	"github.com/opentrusty/storefront/internal/audit"
	"github.com/opentrusty/storefront/internal/cache"
	"github.com/opentrusty/storefront/internal/cache/natskv"
	ristrettocache "github.com/opentrusty/storefront/internal/cache/ristretto"
	"github.com/opentrusty/storefront/internal/config"
	"github.com/opentrusty/storefront/internal/credential"
	"github.com/opentrusty/storefront/internal/observability/logger"
	"github.com/opentrusty/storefront/internal/observability/metrics"
	"github.com/opentrusty/storefront/internal/observability/tracing"
	"github.com/opentrusty/storefront/internal/store/postgres"
	"github.com/opentrusty/storefront/internal/tenant"
	transportHTTP "github.com/opentrusty/storefront/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTelBridge:  cfg.Observability.OTELLogBridge,
	})

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := postgres.RunMigrations(context.Background(), cfg.Database.DSN()); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migration successful.")
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting storefront")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.TraceSampleRatio,
		Insecure:       cfg.Observability.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	res, err := tracing.Resource(ctx, cfg.Observability.ServiceName, cfg.Observability.ServiceVersion)
	if err != nil {
		return err
	}
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		Insecure:       cfg.Observability.OTELInsecure,
		ExportInterval: cfg.Observability.MetricsInterval,
		Resource:       res,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	defer func() { _ = meter.Shutdown(context.Background()) }()

	instruments, err := meter.NewInstruments()
	if err != nil {
		return fmt.Errorf("failed to register instruments: %w", err)
	}

	db, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to database")

	storeCache, closeCache, err := newStoreCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	auditLogger := audit.NewSlogLogger()
	hasher := account.NewArgon2Hasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	accountService, err := account.NewService(postgres.NewAccountRepository(db), hasher, auditLogger)
	if err != nil {
		return err
	}
	directory := tenant.NewDirectory(
		postgres.NewTenantRepository(db),
		storeCache,
		cfg.Cache.TenantTTL,
		tenant.WithLookupCounter(instruments.TenantLookups),
	)
	codec, err := credential.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Close()

	var prom *metrics.Prometheus
	if cfg.Observability.Prometheus {
		prom = metrics.NewPrometheus("storefront")
	}

	handler := transportHTTP.NewHandler(accountService, codec, auditLogger, instruments, cfg.Observability.ServiceName)
	router := transportHTTP.NewRouter(handler, directory, transportHTTP.RouterConfig{
		ReservedLabels: cfg.Tenancy.ReservedLabels,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimiter:    rateLimiter,
		Prometheus:     prom,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server",
			logger.Component("server"),
			logger.Operation("listen"),
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

// newStoreCache builds the store cache selected by cfg.Backend.
func newStoreCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func(), error) {
	switch cfg.Backend {
	case config.CacheBackendNATS:
		c, closeFn, err := natskv.Connect(ctx, cfg.NATSURL, cfg.NATSBucket, cfg.TenantTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect store cache: %w", err)
		}
		slog.Info("using NATS KV store cache", logger.String("bucket", cfg.NATSBucket))
		return c, closeFn, nil
	default:
		c, err := ristrettocache.New(cfg.MaxCostBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create store cache: %w", err)
		}
		slog.Info("using in-memory store cache")
		return c, c.Close, nil
	}
}
