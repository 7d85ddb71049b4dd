package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"inbrentory/backend/internal/cache"
	"inbrentory/backend/internal/config"
	"inbrentory/backend/internal/gateway"
	"inbrentory/backend/internal/httpapi"
	"inbrentory/backend/internal/service"
	"inbrentory/backend/internal/store"
	"inbrentory/backend/internal/store/memory"
	pgstore "inbrentory/backend/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		if cfg.DBMigrate {
			if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
				log.Fatalf("database migration failed: %v", err)
			}
			log.Println("migrations: applied")
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	guard := cache.DeliveryGuard(cache.NewMemoryDeliveryGuard())
	if cfg.RedisAddr != "" {
		redisGuard := cache.NewRedisDeliveryGuard(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisGuard.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-process delivery guard", err)
		} else {
			guard = redisGuard
			closers = append(closers, redisGuard.Close)
			log.Println("delivery guard: redis")
		}
	} else {
		log.Println("delivery guard: in-process")
	}

	gw := gateway.NewHTTPClient(gateway.HTTPConfig{
		BaseURL:           cfg.GatewayBaseURL,
		AccessToken:       cfg.GatewayAccessToken,
		LocationID:        cfg.GatewayLocationID,
		APIVersion:        cfg.GatewayAPIVersion,
		Timeout:           cfg.GatewayTimeout(),
		RequestsPerSecond: cfg.GatewayRequestsPerSecond,
	})

	svc, err := service.New(repo, gw, guard, cfg)
	if err != nil {
		log.Fatalf("service configuration: %v", err)
	}
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("inventory backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.IsProduction() {
		if cfg.WebhookSignatureKey == "" {
			return fmt.Errorf("PAYMENT_WEBHOOK_SIGNATURE_KEY must be set in production")
		}
		if cfg.WebhookNotificationURL == "" {
			return fmt.Errorf("PAYMENT_WEBHOOK_NOTIFICATION_URL must be set in production")
		}
	}
	if _, err := time.LoadLocation(cfg.ReportTimezone); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE %q is not a known zone: %w", cfg.ReportTimezone, err)
	}
	return nil
}
