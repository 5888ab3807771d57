package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/handler"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/infrastructure/cache"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/infrastructure/database"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/infrastructure/mq"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/job"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/pkg/idgen"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(1)

	db := database.InitMySQL(&cfg.MySQL)

	redisClient := cache.InitRedis(&cfg.Redis)

	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background jobs: outbox drain, stale payment parking, balance audit.
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	timeoutJob := job.NewCrossBorderTimeoutJob(db, cfg)
	go timeoutJob.Start(ctx)

	reconcileJob := job.NewReconcileJob(db, cfg)
	go reconcileJob.Start(ctx)

	router := handler.SetupRouter(db, redisClient, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
}
