package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yobozavrik/SupportFeedback/abuse"
	"github.com/yobozavrik/SupportFeedback/achievements"
	"github.com/yobozavrik/SupportFeedback/config"
	"github.com/yobozavrik/SupportFeedback/gemini"
	"github.com/yobozavrik/SupportFeedback/handlers"
	"github.com/yobozavrik/SupportFeedback/identity"
	"github.com/yobozavrik/SupportFeedback/middleware"
	"github.com/yobozavrik/SupportFeedback/service"
	"github.com/yobozavrik/SupportFeedback/storage"
	"github.com/yobozavrik/SupportFeedback/transport"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded configuration from .env")
	}

	cfg := config.Load()

	log.SetHandler(text.New(os.Stderr))
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if cfg.WebhookURL == "" {
		log.Fatal("WEBHOOK_URL environment variable is required")
	}

	store := openStore(cfg)

	userID := identity.EnsureUserID(store)
	guard := abuse.NewGuard(store)
	tracker := achievements.NewTracker(store, cfg.SecretShopperGoal)
	sender := transport.NewClient(transport.Options{
		Retries: cfg.SendRetries,
		Timeout: cfg.SendTimeout,
		Backoff: cfg.SendBackoff,
	})
	feedback := service.NewFeedback(store, guard, tracker, sender,
		userID, cfg.WebhookURL, cfg.TestWebhookURL)
	assist := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)

	h := handlers.NewHandlers(feedback, tracker, assist)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.Use(middleware.NewRateLimiter(5, 10).Middleware())

	api := router.Group("/api/v1")
	{
		api.POST("/feedback", h.SubmitFeedback)
		api.POST("/assist", h.Assist)
		api.GET("/achievements", h.GetAchievements)
		api.GET("/preferences/theme", h.GetTheme)
		api.PUT("/preferences/theme", h.PutTheme)
		api.POST("/test-mode", h.ToggleTestMode)
	}
	router.GET("/health", h.HealthCheck)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting widget API on port %s (user %s)", cfg.Port, userID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Forced shutdown: %v", err)
	}

	if closer, ok := store.(*storage.MySQLStore); ok {
		closer.Close()
	}
}

// openStore picks the configured store backend, falling back to the file
// store when MySQL is unreachable: local preferences must not keep the
// widget from starting.
func openStore(cfg *config.Config) storage.Store {
	if cfg.StoreBackend == "mysql" {
		s, err := storage.NewMySQLStore(storage.MySQLConfig{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Name:     cfg.DBName,
		})
		if err == nil {
			log.Info("Using MySQL key-value store")
			return s
		}
		log.Warnf("MySQL store unavailable, falling back to file store: %v", err)
	}
	return storage.NewFileStore(cfg.StoreFile)
}
