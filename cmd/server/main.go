package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"mailservice/config"
	"mailservice/internal/api"
	"mailservice/internal/message"
	"mailservice/internal/relay"
	"mailservice/internal/repository"
	"mailservice/internal/service"
	"mailservice/internal/validation"
	"mailservice/pkg/circuitbreaker"
	pkgconfig "mailservice/pkg/config"
	"mailservice/pkg/logger"
	"mailservice/pkg/otel"
)

func main() {
	configPath := flag.String("config", pkgconfig.GetEnv("CONFIG_FILE", "config.yaml"), "config file or layered config directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting mail service",
		zap.String("version", cfg.App.Version),
		zap.String("relay", cfg.Relay.Provider),
		zap.String("port", cfg.Server.Port),
	)

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Endpoint:       cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Relay
	r, err := relay.FromConfig(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to init relay", zap.Error(err))
	}

	opts := service.MailOptions{
		Timeout:    cfg.SendTimeout(),
		Version:    cfg.App.Version,
		LogContent: cfg.Logging.EmailContent,
	}
	if cfg.Relay.Breaker.Enabled {
		opts.Breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			FailureThreshold: cfg.Relay.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Relay.Breaker.SuccessThreshold,
			Timeout:          cfg.Relay.Breaker.Timeout,
		})
	}

	// Services
	historyRepo := repository.NewHistoryRepository(cfg.Mail.HistoryLimit)
	mailService := service.NewMailService(
		validation.NewValidator(),
		message.NewBuilder(cfg.Mail.FromName, cfg.Mail.FromEmail),
		r,
		historyRepo,
		opts,
		log,
	)

	var authService *service.AuthService
	if cfg.Auth.Enabled {
		authService, err = service.NewAuthService(cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.SecretKey, cfg.Auth.TokenTTL)
		if err != nil {
			log.Fatal("Failed to init auth", zap.Error(err))
		}
	} else {
		log.Warn("Authentication disabled; send and history are open")
	}

	// Handlers
	router := api.NewRouter(
		api.NewMailHandler(mailService, log),
		api.NewHistoryHandler(mailService),
		api.NewHealthHandler(mailService, cfg.App.Name, cfg.App.Version, cfg.Mail.FromEmail),
		authService,
		log,
		cfg.Logging,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router.Handler(cfg.CORS.Origins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down mail service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
}
