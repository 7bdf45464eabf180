package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/chattie/chattie/internal/auth"
	"github.com/chattie/chattie/internal/backend"
	"github.com/chattie/chattie/internal/circuitbreaker"
	"github.com/chattie/chattie/internal/common/config"
	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/logging"
	"github.com/chattie/chattie/internal/common/netinfo"
	"github.com/chattie/chattie/internal/debugapi"
	"github.com/chattie/chattie/internal/infra/cache"
	"github.com/chattie/chattie/internal/models"
	"github.com/chattie/chattie/internal/observability"
	"github.com/chattie/chattie/internal/prefs"
	"github.com/chattie/chattie/internal/ratelimit"
	"github.com/chattie/chattie/internal/realtime"
	"github.com/chattie/chattie/internal/retry"
	"github.com/chattie/chattie/internal/session"
	"github.com/chattie/chattie/internal/toast"
	"github.com/chattie/chattie/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Init(
		cfg.Logging.Level,
		cfg.Logging.Format,
		cfg.Logging.Output,
		cfg.Logging.EnableFile,
		cfg.Logging.FilePath,
	)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	creds, err := auth.NewCredentials(cfg.Backend.Project, cfg.Session.Cookie, cfg.Session.JWT, cfg.Session.UserID)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if exp := creds.ExpiresAt(); !exp.IsZero() && creds.Expired(time.Now()) {
		return fmt.Errorf("session token expired at %s", exp.Format(time.RFC3339))
	}

	logger.Info("starting chattie-sync",
		zap.String("version", version.String()),
		zap.String("user_id", creds.UserID()),
		zap.String("endpoint", cfg.Backend.Endpoint),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	healthChecker := observability.NewHealthChecker(logger, version.String())

	var profiles *cache.AsidePattern[models.User]
	if cfg.Redis.Enabled {
		cacheClient, err := cache.New(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			"chattie:",
		)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without profile cache", zap.Error(err))
		} else {
			defer func() {
				if err := cacheClient.Close(); err != nil {
					logger.Error("failed to close cache", zap.Error(err))
				}
			}()
			logger.Info("connected to Redis")

			profiles = cache.NewAsidePattern[models.User](cacheClient, cfg.Redis.MemberTTL)
			profiles.OnLoad(func(hit bool) {
				metrics.RecordCacheHit("profile", hit)
			})

			healthChecker.RegisterCheck("redis", func(ctx context.Context) (observability.HealthStatus, string, error) {
				if err := cacheClient.Ping(ctx); err != nil {
					return observability.StatusDegraded, "redis connection failed", err
				}
				return observability.StatusHealthy, "redis connection ok", nil
			})
		}
	}

	avatars := cache.NewTTL[string, string](cfg.Redis.MemberTTL, time.Minute)
	defer avatars.Close()

	breaker := circuitbreaker.New(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout, errors.IsRetryable)
	client := backend.New(backend.Options{
		Endpoint:     cfg.Backend.Endpoint,
		Project:      cfg.Backend.Project,
		Database:     cfg.Backend.Database,
		AvatarBucket: cfg.Backend.AvatarBucket,
		AppBaseURL:   cfg.App.BaseURL,
		Timeout:      cfg.Backend.Timeout,
		UserAgent:    version.UserAgent("chattie-sync"),
		Retry: retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			InitialWait: cfg.Retry.InitialWait,
			MaxWait:     cfg.Retry.MaxWait,
			Multiplier:  2.0,
		},
		Breaker: breaker,
		Limiter: ratelimit.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.Enabled),
		Metrics: metrics,
	}, creds, logger.Named("backend"))

	healthChecker.RegisterCheck("backend", observability.StateCheck(
		func() string { return breaker.GetState().String() },
		map[string]observability.HealthStatus{
			circuitbreaker.StateClosed.String():   observability.StatusHealthy,
			circuitbreaker.StateHalfOpen.String(): observability.StatusDegraded,
			circuitbreaker.StateOpen.String():     observability.StatusDegraded,
		},
	))

	toasts := toast.NewFeed(toast.DefaultLimit, logger.Named("toast"))
	unsubToasts := toasts.Subscribe(func(t toast.Toast) {
		logger.Info("toast",
			zap.String("level", string(t.Level)),
			zap.String("title", t.Title),
			zap.String("message", t.Message),
		)
	})
	defer unsubToasts()

	dialer := realtime.NewWebSocketDialer(
		cfg.Backend.Endpoint,
		cfg.Backend.Project,
		client.Headers,
		cfg.Stream.PingInterval,
		cfg.Stream.HandshakeTimeout,
		logger.Named("ws"),
	)

	sess := session.New(session.Config{
		UserID:             creds.UserID(),
		UserName:           cfg.Session.UserName,
		Database:           client.Database(),
		HistoryPages:       cfg.App.HistoryPages,
		NotificationLimit:  cfg.Notifications.Limit,
		HeartbeatInterval:  cfg.Presence.HeartbeatInterval,
		FreshnessWindow:    cfg.Presence.FreshnessWindow,
		ReinitGrace:        cfg.Stream.ReinitGrace,
		ChannelCreateDelay: cfg.Stream.ChannelCreateDelay,
		MemberConcurrency:  cfg.App.MemberFetchConcurrency,
	}, session.Deps{
		Backend:  client,
		Dialer:   dialer,
		Toasts:   toasts,
		Profiles: profiles,
		Avatars:  avatars,
		Metrics:  metrics,
		Logger:   logger.Named("session"),
	})

	healthChecker.RegisterCheck("stream", observability.StateCheck(
		func() string { return string(sess.Status()) },
		map[string]observability.HealthStatus{
			string(realtime.StatusConnected):  observability.StatusHealthy,
			string(realtime.StatusConnecting): observability.StatusDegraded,
		},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			logger.Error("failed to close session", zap.Error(err))
		}
	}()

	if cfg.App.WorkspaceID != "" {
		if err := sess.OpenWorkspace(ctx, cfg.App.WorkspaceID); err != nil {
			logger.Warn("failed to open workspace",
				zap.String("workspace_id", cfg.App.WorkspaceID),
				zap.Error(err),
			)
		}
	}

	preferences, err := prefs.Open(cfg.Prefs.Path, toasts, logger.Named("prefs"))
	if err != nil {
		logger.Warn("failed to load preferences", zap.Error(err))
	} else if _, err := preferences.Announce("Threads", "Reply to any message to start a thread."); err != nil {
		logger.Warn("failed to record feature announcement", zap.Error(err))
	}

	debugServer := debugapi.New(healthChecker, metrics, sess, cfg.Observability.AllowedOrigins, logger.Named("debugapi"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- debugServer.Start(ctx, cfg.Observability.DebugPort)
	}()

	netinfo.PrintBanner(os.Stdout, "chattie-sync "+version.String(),
		netinfo.DebugAddresses("", cfg.Observability.DebugPort),
		map[string]string{
			"User":      creds.UserID(),
			"Backend":   cfg.Backend.Endpoint,
			"Workspace": cfg.App.WorkspaceID,
		},
		[]string{"User", "Backend", "Workspace"},
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("debug server: %w", err)
		}
	}
	return nil
}
