// Copyright 2026 The Coursely Authors
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
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursely/coursely/internal/audit"
	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/catalog"
	"github.com/coursely/coursely/internal/guard"
	"github.com/coursely/coursely/internal/identity"
	"github.com/coursely/coursely/internal/media"
	"github.com/coursely/coursely/internal/observability/logger"
	"github.com/coursely/coursely/internal/observability/metrics"
	"github.com/coursely/coursely/internal/observability/tracing"
	"github.com/coursely/coursely/internal/profile"
	"github.com/coursely/coursely/internal/session"
	"github.com/coursely/coursely/internal/store/postgres"
	storeredis "github.com/coursely/coursely/internal/store/redis"
	transportHTTP "github.com/coursely/coursely/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the API and frontend server. Every request passes the route guard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting coursely")

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(context.Background())
	}

	// Initialize log export
	logProvider, err := logger.NewProvider(ctx, logger.ProviderConfig{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize log exporter", logger.Error(err))
	} else if logProvider != nil {
		defer logProvider.Shutdown(context.Background())
		logger.InitLogger(logger.Config{
			Level:          logLevel,
			Format:         cfg.Observability.LogFormat,
			ServiceName:    cfg.Observability.ServiceName,
			LoggerProvider: logProvider,
		})
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceVersion: cfg.Observability.ServiceVersion,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	defer meter.Shutdown(context.Background())
	accessMetrics, err := metrics.NewAccessMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to register access metrics: %w", err)
	}

	// Initialize database
	db, err := openDatabase(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.InfoContext(ctx, "connected to database")

	// Session revocation
	var revocations session.RevocationStore
	if cfg.Redis.Addr != "" {
		rdb, err := storeredis.Open(ctx, storeredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		revocations = storeredis.NewRevocationStore(rdb)
		slog.InfoContext(ctx, "connected to redis")
	} else {
		slog.WarnContext(ctx, "REDIS_ADDR not set, session revocations are kept in memory and not shared across instances")
		revocations = session.NewMemoryRevocationStore()
	}

	// Media signing
	var signer media.Signer = media.DisabledSigner{}
	if cfg.Storage.Bucket != "" {
		s3Signer, err := media.NewS3Signer(ctx, media.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize media signer: %w", err)
		}
		signer = s3Signer
	} else {
		slog.WarnContext(ctx, "STORAGE_BUCKET not set, lesson media URLs are disabled")
	}

	// Initialize repositories
	profileRepo := postgres.NewProfileRepository(db)
	courseRepo := postgres.NewCourseRepository(db)
	lessonRepo := postgres.NewLessonRepository(db)
	roleRequestRepo := postgres.NewRoleRequestRepository(db)

	auditLogger := audit.NewSlogLogger(nil)

	// Initialize services
	verifier, err := identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	sessions := session.NewResolver(verifier, revocations, cfg.Auth.CookieName)
	roles := authz.NewRoleResolver(profileRepo, auditLogger, accessMetrics, cfg.Authz.RoleLookupTimeout)
	catalogService := catalog.NewService(courseRepo)
	mediaService := media.NewService(lessonRepo, signer, cfg.Storage.URLTTL, auditLogger, accessMetrics)
	roleRequestService := profile.NewService(roleRequestRepo, auditLogger)

	routeGuard, err := guard.New(guard.DefaultTable(), guard.Config{
		LoginPath:     cfg.Routes.LoginPath,
		DashboardPath: cfg.Routes.DashboardPath,
	}, auditLogger, accessMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize route guard: %w", err)
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(
		sessions,
		roles,
		catalogService,
		mediaService,
		roleRequestService,
		db,
		auditLogger,
		transportHTTP.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Domain: cfg.Auth.CookieDomain,
			Secure: cfg.Auth.CookieSecure,
		},
	)

	router := transportHTTP.NewRouter(handler, rateLimiter, routeGuard, transportHTTP.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		Static:         frontendFS(ctx, cfg.Frontend.Dir),
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
		return err
	}

	slog.Info("server stopped")
	return nil
}

// frontendFS returns the built frontend, or nil when dir is missing so the
// API still serves.
func frontendFS(ctx context.Context, dir string) fs.FS {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		slog.WarnContext(ctx, "frontend directory not found, serving API only", logger.String("dir", dir))
		return nil
	}
	return os.DirFS(dir)
}
