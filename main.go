package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorly/config"
	"tutorly/cron"
	"tutorly/database"
	sessionRepoPkg "tutorly/database/repository/session"
	userRepoPkg "tutorly/database/repository/user"
	"tutorly/handlers"
	"tutorly/routes"
	"tutorly/services/booking"
	"tutorly/services/calendar"
	"tutorly/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	userRepo := userRepoPkg.NewMongoUserRepo()
	sessionRepo := sessionRepoPkg.NewMongoSessionRepo()

	// calendar adapters.
	googleCalendar := calendar.NewGoogleCalendar(userRepo)
	calendlyClient := calendar.NewCalendly(userRepo, utils.GetCalendarCacheClient())

	syncQueue := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSyncQueueDB,
	})
	defer syncQueue.Close()

	// services.
	detector := &booking.ConflictDetector{
		Sessions: sessionRepo,
		Users:    userRepo,
		Busy:     googleCalendar,
	}
	bookingService := &booking.DefaultBookingService{
		Sessions:  sessionRepo,
		Users:     userRepo,
		Detector:  detector,
		Google:    googleCalendar,
		Calendly:  calendlyClient,
		SyncQueue: syncQueue,
	}

	handlerBundle := handlers.NewHandlerBundle(userRepo, bookingService, googleCalendar, calendlyClient)

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Background workers.
	syncWorker := cron.InitSyncWorker(bookingService)
	completionSweep := cron.InitCompletionSweep(sessionRepo)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	if completionSweep != nil {
		completionSweep.Stop()
	}
	if syncWorker != nil {
		syncWorker.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
