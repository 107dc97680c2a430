package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"lotdesk/arb"
	"lotdesk/auth"
	"lotdesk/chat"
	"lotdesk/db"
	"lotdesk/report"
	"lotdesk/task"
	"lotdesk/vehicle"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		log.Fatal("DATABASE_URL is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.WithError(err).Fatal("bootstrap database pool")
	}
	defer pool.Close()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, jwtSecret)
	userAdmin := auth.NewManageService(authRepo)

	vehicleRepo := vehicle.NewRepository(pool)
	arbRepo := arb.NewRepository(pool)
	taskRepo := task.NewRepository(pool)
	chatRepo := chat.NewRepository(pool)
	reportRepo := report.NewRepository(pool)

	feed := chat.NewFeed(pool, log)
	go feed.Run(ctx)

	server := &Server{
		log:            log,
		accounts:       authService,
		verifier:       authService,
		users:          userAdmin,
		vehicleService: vehicle.NewService(vehicleRepo),
		arbService:     arb.NewService(pool, arbRepo),
		arbViews:       arbRepo,
		taskService:    task.NewService(taskRepo),
		chatStore:      chatRepo,
		feed:           feed,
		reports:        reportRepo,
		metrics:        newAPIMetrics(),
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", addr).Info("api listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("serve")
	}
}
