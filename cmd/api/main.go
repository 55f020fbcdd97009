package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Siddarth2230/linklytics/internal/auth"
	"github.com/Siddarth2230/linklytics/internal/config"
	"github.com/Siddarth2230/linklytics/internal/geo"
	"github.com/Siddarth2230/linklytics/internal/handler"
	"github.com/Siddarth2230/linklytics/internal/models"
	"github.com/Siddarth2230/linklytics/internal/ratelimit"
	"github.com/Siddarth2230/linklytics/internal/repository"
	"github.com/Siddarth2230/linklytics/internal/service"
	"github.com/Siddarth2230/linklytics/pkg/cache"
	"github.com/Siddarth2230/linklytics/pkg/idgen"
)

func main() {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repository
	var repo repository.LinkRepository
	if cfg.DatabaseURL != "" {
		pg, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		repo = pg
		log.Println("Link store: postgres")
	} else {
		repo = repository.NewMemory()
		log.Println("Link store: in-memory (DATABASE_URL not set)")
	}
	defer repo.Close()

	// ---------- Redis: shared rate limiter + L2 cache ----------
	var (
		limiter ratelimit.Limiter
		l2      *cache.RedisCache
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		})
		// Try pinging Redis so we fail fast if it's down
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
		defer func() {
			_ = redisClient.Close()
		}()

		limiter = ratelimit.NewRedis(redisClient, "ratelimit:create:", cfg.RateLimit, cfg.RateWindow)
		l2 = cache.NewRedisCache(redisClient, "link:", cfg.RedisCacheTTL)
		log.Printf("Redis at %s: shared rate limiter and L2 cache enabled", cfg.RedisAddr)
	} else {
		mem := ratelimit.NewMemory(cfg.RateLimit, cfg.RateWindow)
		go mem.Run(ctx, cfg.RateWindow)
		limiter = mem
	}
	// -----------------------------------------------------------

	var locator geo.Locator = geo.Nop{}
	if cfg.GeoIPPath != "" {
		mm, err := geo.OpenMaxMind(cfg.GeoIPPath)
		if err != nil {
			log.Fatalf("geoip open failed: %v", err)
		}
		defer mm.Close()
		locator = mm
	}

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET not set: authenticated routes will reject every request")
	}

	var l1 *cache.LRU[models.Link]
	if cfg.CacheSize > 0 {
		l1 = cache.NewLRU[models.Link](cfg.CacheSize, cfg.CacheTTL)
	}

	// Initialize service and handlers
	svc := service.NewLinkService(repo, idgen.NewRandomGenerator(cfg.CodeLength), limiter, locator, service.Options{
		BaseURL:        cfg.BaseURL,
		ListLimit:      cfg.ListLimit,
		AnalyticsLimit: cfg.AnalyticsLimit,
		BcryptCost:     cfg.BcryptCost,
		GeoTimeout:     cfg.GeoTimeout,
		L1:             l1,
		L2:             l2,
	})
	h := handler.NewLinkHandler(svc, cfg.ClientURL, cfg.TrustProxy)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.NewRouter(h, auth.NewJWT(cfg.JWTSecret)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on %s", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
