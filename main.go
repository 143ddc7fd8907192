package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/yeremiapane/mozoqr/config"
	"github.com/yeremiapane/mozoqr/database"
	"github.com/yeremiapane/mozoqr/events"
	"github.com/yeremiapane/mozoqr/kds"
	"github.com/yeremiapane/mozoqr/middlewares"
	"github.com/yeremiapane/mozoqr/router"
	"github.com/yeremiapane/mozoqr/services"
	"github.com/yeremiapane/mozoqr/utils"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found, using environment")
	}
	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		if cfg.JWTSecret == config.DefaultJWTSecret {
			utils.ErrorLogger.Fatal("JWT_SECRET must be set in production")
		}
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate: %v", err)
	}
	if cfg.SeedDemo {
		if _, err := database.Seed(db); err != nil {
			utils.ErrorLogger.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	var locker services.Locker = services.NewLocalLocker()
	if rdb := config.NewRedisClient(cfg); rdb != nil {
		defer rdb.Close()
		locker = services.NewRedisLocker(rdb, cfg.TableLockTTL)
		utils.InfoLogger.Printf("Table locks held in Redis at %s", cfg.RedisAddr)
	}

	hub := kds.NewHub()
	publishers := events.Multi{hub}
	if w := config.NewKafkaWriter(cfg); w != nil {
		defer w.Close()
		publishers = append(publishers, events.NewKafkaPublisher(w))
		utils.InfoLogger.Printf("Publishing order events to Kafka topic %s", cfg.KafkaTopic)
	}

	// kitchen displays and the broker are fed off the request path
	publisher := events.NewAsync(publishers, cfg.EventQueueSize, 10*time.Second)

	orders := services.NewOrderService(db,
		services.WithLocker(locker),
		services.WithPublisher(publisher),
		services.WithDedupWindow(cfg.OrderDedupWindow),
	)
	r := router.SetupRouter(router.Deps{
		DB:       db,
		Config:   cfg,
		Hub:      hub,
		Orders:   orders,
		Payments: services.NewPaymentService(db, orders),
		Sessions: services.NewSessionService(db),
		Catalog:  services.NewCatalogService(db),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middlewares.CORS(cfg.CORSOrigins, !cfg.IsProduction()).Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		utils.InfoLogger.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if cerr := publisher.Close(shutdownCtx); cerr != nil {
			utils.ErrorLogger.Warnf("Pending events not delivered: %v", cerr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		utils.ErrorLogger.Fatalf("Server error: %v", err)
	}
}
