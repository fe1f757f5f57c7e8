package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"alumni/internal/config"
	"alumni/internal/content"
	"alumni/internal/dashboard"
	"alumni/internal/events"
	transporthttp "alumni/internal/http"
	"alumni/internal/identity"
	"alumni/internal/members"
	"alumni/internal/notify"
	"alumni/internal/platform/cache"
	"alumni/internal/platform/database"
	"alumni/internal/platform/logging"
	"alumni/internal/platform/metrics"
	"alumni/internal/platform/migrate"
	"alumni/internal/session"
)

const associationName = "Alumni Association"

type stores struct {
	accounts  identity.AccountRepository
	profiles  members.Repository
	audit     members.AuditRepository
	content   content.Repository
	events    events.Repository
	emailLogs notify.LogRepository
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	repos, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	kv, closeKV := buildKeyValueStore(ctx, cfg, logger)
	defer closeKV()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	mailer, err := buildMailer(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize mailer", "error", err)
		os.Exit(1)
	}
	renderer, err := notify.NewRenderer(associationName)
	if err != nil {
		logger.Error("failed to compile email templates", "error", err)
		os.Exit(1)
	}

	provider := identity.NewLocalProvider(
		repos.accounts,
		identity.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL),
		kv,
		notify.NewPasswordResetMailer(renderer, mailer, repos.emailLogs, logger),
		identity.LocalConfig{MaxFailedAttempts: cfg.MaxFailedAttempts, LockoutWindow: cfg.LockoutWindow},
		logger,
		recorder,
	)

	memberSvc := members.NewService(repos.profiles, repos.audit, logger)
	resolver := session.NewResolver(provider, memberSvc, session.NewPublisher(recorder), logger, recorder)
	memberSvc.OnChange(resolver.Refresh)
	go resolver.Watch(ctx)

	eventSvc := events.NewService(repos.events, logger)
	dispatcher := notify.NewDispatcher(provider, renderer, mailer, repos.emailLogs, logger, recorder)

	var callable notify.Callable = notify.NewLocalCallable(dispatcher)
	if cfg.EmailEndpointURL != "" {
		callable = notify.NewHTTPCallable(cfg.EmailEndpointURL, &http.Client{Timeout: 15 * time.Second})
		logger.Info("rsvp confirmations use remote endpoint", "url", cfg.EmailEndpointURL)
	}

	limiter := transporthttp.NewIPRateLimiter(cfg.AuthRateLimitPerMinute)
	defer limiter.Stop()

	services := transporthttp.Services{
		Resolver:   resolver,
		Members:    memberSvc,
		Content:    content.NewService(repos.content, logger),
		Events:     eventSvc,
		Dashboard:  dashboard.NewService(memberSvc, eventSvc, repos.emailLogs),
		EmailLogs:  repos.emailLogs,
		Dispatcher: dispatcher,
		Confirmer:  notify.NewConfirmer(callable, repos.emailLogs, logger, recorder),
		Limiter:    limiter,
		Gatherer:   registry,
	}

	if cfg.GoogleEnabled() {
		google, err := identity.NewGoogleAuthenticator(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			logger.Error("failed to initialize google sign-in", "error", err)
			os.Exit(1)
		}
		services.Google = transporthttp.NewOAuthHandler(google, provider, resolver, cfg.FrontendURL, cfg.Environment, logger)
	}

	router := transporthttp.NewRouter(cfg, services, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("alumni API listening", "addr", srv.Addr, "store", cfg.DataStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory repository")
		repos := stores{
			accounts:  identity.NewInMemoryRepository(),
			profiles:  members.NewInMemoryRepository(),
			audit:     members.NewInMemoryAuditRepository(),
			content:   content.NewInMemoryRepository(),
			events:    events.NewInMemoryRepository(),
			emailLogs: notify.NewInMemoryLogRepository(),
		}
		if err := seedDemoData(ctx, repos); err != nil {
			return stores{}, nil, err
		}
		return repos, nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return stores{}, nil, err
	}

	logger.Info("connected to postgres")
	return stores{
		accounts:  identity.NewPostgresRepository(db),
		profiles:  members.NewPostgresRepository(db),
		audit:     members.NewPostgresAuditRepository(db),
		content:   content.NewPostgresRepository(db),
		events:    events.NewPostgresRepository(db),
		emailLogs: notify.NewPostgresLogRepository(db),
	}, cleanup, nil
}

func buildKeyValueStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Store, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-process lockout and revocation store")
		return cache.NewMemory(), func() {}
	}

	client := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	} else {
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}
	return client, func() { _ = client.Close() }
}

func buildMailer(cfg config.Config, logger *slog.Logger) (notify.Mailer, error) {
	if !cfg.SMTPEnabled() {
		logger.Warn("SMTP_HOST not set; outgoing email is logged only")
		return notify.NewLogMailer(logger), nil
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}
