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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/survey-registry/internal/answer"
	api "github.com/mind-engage/survey-registry/internal/api/http"
	auth "github.com/mind-engage/survey-registry/internal/auth/middleware"
	"github.com/mind-engage/survey-registry/internal/cache"
	"github.com/mind-engage/survey-registry/internal/config"
	"github.com/mind-engage/survey-registry/internal/db"
	"github.com/mind-engage/survey-registry/internal/export"
	"github.com/mind-engage/survey-registry/internal/ratelimit"
	"github.com/mind-engage/survey-registry/internal/storage"
	"github.com/mind-engage/survey-registry/internal/survey"
	syncx "github.com/mind-engage/survey-registry/internal/sync"
)

func main() {
	cfg := config.FromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatalf("db driver: %v", err)
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	store := survey.NewSQLStore(dbh, string(driver))

	// --- Survey cache (optional) ---
	var catalog survey.Catalog = store
	var invalidator api.Invalidator
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("cache: redis %s unreachable, reads fall through: %v", cfg.RedisAddr, err)
		}
		sc := cache.NewSurveyCache(rdb, store, cfg.SurveyCacheTTL)
		catalog, invalidator = sc, sc
		defer rdb.Close()
	}

	// --- Blob storage ---
	blobs, err := openBlobs(cfg)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	svc := answer.NewService(store,
		answer.WithCatalog(catalog),
		answer.WithBlobStore(blobs),
		answer.WithDefaultLanguage(cfg.DefaultLanguage),
	)

	limiter := ratelimit.New(cfg.SubmitRatePerMin, cfg.SubmitBurst, 10*time.Minute)
	go limiter.Run(ctx)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		Auth:  auth.NewAuthService(cfg.AuthHMACSecret),
		Users: auth.NewUsers(dbh),
		Login: auth.LoginOptions{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			DevUsers:      cfg.Mode == config.ModeOffline,
		},
		Store:          store,
		Catalog:        catalog,
		Cache:          invalidator,
		Service:        svc,
		Exporter:       export.NewExporter(store, catalog),
		Blobs:          blobs,
		Events:         syncx.NewEventRepo(dbh),
		Limiter:        limiter,
		DB:             dbh,
		LocalAuth:      cfg.EnableLocalAuth,
		TrustTokenRole: cfg.Mode == config.ModeOffline,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s (mode=%s, db=%s, blobs=%s, cache=%t)",
		cfg.HTTPAddr, cfg.Mode, driver, cfg.BlobDriver, invalidator != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func openBlobs(cfg config.Config) (storage.BlobStore, error) {
	switch cfg.BlobDriver {
	case "s3":
		return storage.NewS3Store(cfg.AWSRegion, cfg.S3Bucket, 15*time.Minute)
	case "", "fs":
		return storage.NewFSStore(cfg.BlobBasePath)
	}
	return nil, errors.New("unsupported BLOB_DRIVER: " + cfg.BlobDriver)
}
