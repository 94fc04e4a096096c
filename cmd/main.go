package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/giftcart-service/internal/catalog"
	"github.com/fjod/go_cart/giftcart-service/internal/events"
	h "github.com/fjod/go_cart/giftcart-service/internal/http"
	"github.com/fjod/go_cart/giftcart-service/internal/logger"
	s "github.com/fjod/go_cart/giftcart-service/internal/service"
	"github.com/fjod/go_cart/giftcart-service/internal/session"
)

type Config struct {
	HTTPPort        string
	LogLevel        string
	SessionTTL      time.Duration
	RedisAddr       string
	RedisPassword   string
	CatalogDBPath   string
	KafkaBrokers    []string
	KafkaTopic      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SessionTTL:      getDuration("SESSION_TTL", 30*time.Minute),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CatalogDBPath:   getEnv("CATALOG_DB_PATH", ""),
		KafkaBrokers:    brokers,
		KafkaTopic:      getEnv("KAFKA_TOPIC", "cart-promotions"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func main() {
	cfg := loadConfig()

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()

	var products catalog.Catalog = catalog.NewStatic()
	if cfg.CatalogDBPath != "" {
		repo, err := catalog.NewSQLite(cfg.CatalogDBPath)
		if err != nil {
			zl.Fatal("failed to open catalog database", zap.Error(err))
		}
		defer repo.Close()

		if err := repo.RunMigrations(); err != nil {
			zl.Fatal("failed to run catalog migrations", zap.Error(err))
		}
		zl.Info("catalog served from sqlite", zap.String("path", cfg.CatalogDBPath))
		products = repo
	}

	var store session.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Fatal("redis connection failed", zap.Error(err))
		}
		zl.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		store = session.NewRedisStore(redisClient, cfg.SessionTTL)
	} else {
		store = session.NewMemoryStore(cfg.SessionTTL)
	}
	defer store.Close()

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		zl.Info("promotion events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	service := s.NewCartService(products, store, publisher, zl)
	cartHandler := h.NewCartHandler(service, cfg.RequestTimeout, zl)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(cartHandler, zl, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("gift cart service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	// let pending promotion events go out before the deferred publisher.Close
	service.Wait()

	zl.Info("server exited")
}
