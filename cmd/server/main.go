package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/onepond/fairygate/config"
	"github.com/onepond/fairygate/controllers"
	"github.com/onepond/fairygate/relay"
	"github.com/onepond/fairygate/stores"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[fairygate] ", log.LstdFlags)

	if cfg.APIKey == "" {
		logger.Println("warning: GEMINI_API_KEY is not set, chat requests will fail with a configuration error")
	}

	var store stores.TranscriptStore
	if cfg.StoreType != "" {
		var err error
		store, err = stores.NewStore(stores.NewStoreConfig(cfg.StoreType, cfg.StoreDSN))
		if err != nil {
			logger.Fatalf("failed to open transcript store: %v", err)
		}
		defer store.Close()
		logger.Printf("transcript store ready (%s)", cfg.StoreType)
	}

	if store != nil && cfg.RetentionDays > 0 {
		scheduler := cron.New()
		retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
		_, err := scheduler.AddFunc("@daily", func() {
			removed, err := store.PruneBefore(time.Now().Add(-retention))
			if err != nil {
				logger.Printf("retention prune failed: %v", err)
				return
			}
			if removed > 0 {
				logger.Printf("retention prune removed %d conversation(s)", removed)
			}
		})
		if err != nil {
			logger.Fatalf("failed to schedule retention prune: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := &controllers.Handler{
		Relay:       relay.NewClient(cfg.APIKey, cfg.Model),
		Store:       store,
		Logger:      logger,
		Port:        cfg.Port,
		Environment: cfg.Env,
	}

	router := gin.Default()
	handler.RegisterRoutes(router)

	logger.Printf("listening on port %s (env=%s, model=%s)", cfg.Port, cfg.Env, cfg.Model)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
