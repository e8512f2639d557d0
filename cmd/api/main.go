package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mn-address-parser/app/bootstrap"
	"github.com/mn-address-parser/app/config"
	"github.com/mn-address-parser/app/controllers"
	"github.com/mn-address-parser/app/services"
	"github.com/mn-address-parser/routes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to app.yaml (default: ./config/app.yaml or ./app.yaml)")
	flag.Parse()

	if err := config.Load(*configPath); err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	cfg := &config.C

	logger, err := bootstrap.InitLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("cannot initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting mongolian address parser", zap.String("env", cfg.App.Env))

	table, err := bootstrap.LoadTable(cfg, logger)
	if err != nil {
		logger.Fatal("failed to load alias table", zap.Error(err))
	}
	addressParser, err := bootstrap.NewParser(cfg, table, logger)
	if err != nil {
		logger.Fatal("failed to build parser", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *mongo.Database
	if cfg.NeedsMongo() {
		db, err = bootstrap.ConnectMongo(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to mongo", zap.Error(err))
		}
		defer func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				logger.Error("failed to disconnect from mongo", zap.Error(err))
			}
		}()
	}

	cacheService, err := services.NewCacheFromConfig(cfg, db, logger)
	if err != nil {
		logger.Fatal("failed to initialize cache", zap.Error(err))
	}
	defer cacheService.Close()
	startCacheMaintenance(ctx, cacheService, table.Version(), cfg.Cache.L1Size, logger)

	// a nil *GazetteerSearcher must not end up inside the interface
	var searcher services.DistrictIndex
	if cfg.Meilisearch.Enabled {
		gs, err := bootstrap.NewSearcher(cfg, logger)
		if err != nil {
			logger.Warn("meilisearch unavailable, district suggestions disabled", zap.Error(err))
		} else {
			searcher = gs
		}
	}

	var reviewService *services.ReviewService
	if cfg.Review.Enabled {
		var store services.IReviewStore = services.NewMemoryReviewStore()
		if db != nil {
			store = services.NewMongoReviewStore(db, logger)
		}
		reviewService = services.NewReviewService(store, cacheService, table.Version(), logger)
	}

	addressService := services.NewAddressService(addressParser, cacheService, reviewService, searcher,
		services.ServiceOptions{
			TrustedMinConfidence: cfg.Parser.TrustedMinConfidence,
			Workers:              cfg.Batch.Workers,
		}, logger)
	adminService := services.NewAdminService(db, searcher, table, cacheService, reviewService, addressService, logger)

	addressController := controllers.NewAddressController(addressService, cfg.Batch.MaxAddresses, logger)
	adminController := controllers.NewAdminController(adminService, reviewService, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupAllRoutes(router, addressController, adminController,
		routes.RateLimit(cfg.App.RateLimit, cfg.App.RateBurst))

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shut down", zap.Error(err))
	}
	logger.Info("server exited")
}

// startCacheMaintenance runs backend specific upkeep: expiry sweeps for the
// in-memory cache, LRU warm up for Mongo.
func startCacheMaintenance(ctx context.Context, cache services.ICacheService, version string, l1Size int, logger *zap.Logger) {
	switch c := cache.(type) {
	case *services.CacheService:
		c.StartCleanupWorker(ctx, 5*time.Minute)
	case *services.MongoCacheService:
		go func() {
			if err := c.WarmUp(ctx, version, l1Size/2); err != nil {
				logger.Warn("failed to warm up cache", zap.Error(err))
			}
		}()
	}

	if err := cache.InvalidateByGazetteerVersion(ctx, version); err != nil {
		logger.Warn("failed to drop stale cache entries", zap.Error(err))
	}
}
