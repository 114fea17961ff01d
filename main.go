package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"fieldsync/config"
	"fieldsync/connectivity"
	"fieldsync/handlers"
	"fieldsync/queue"
	"fieldsync/remote"
	"fieldsync/submit"
	"fieldsync/syncer"
	ws "fieldsync/websocket"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	godotenv.Load()

	cfg := config.Load()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Local queue; an unavailable queue degrades to online-only capture.
	q := queue.Open(cfg.QueuePath)
	defer q.Close()

	// Remote store client.
	store := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteAPIKey, cfg.EvidenceBucket)

	// WebSocket hub for the status indicator.
	hub := ws.NewHub()
	go hub.Run()

	// Connectivity monitor and sync engine; a transition to online fires a
	// sync pass immediately instead of waiting for the next tick.
	monitor := connectivity.NewMonitor(store, cfg.ProbeInterval)
	engine := syncer.NewEngine(q, store, monitor.Online, hub, cfg.SyncInterval, cfg.SuccessHold)
	monitor.Subscribe(func(online bool) {
		if online {
			go engine.TriggerSync()
		}
	})

	monitor.Start()
	defer monitor.Stop()
	engine.Start()
	defer engine.Stop()

	submitter := submit.NewSubmitter(store, q, monitor)
	h := handlers.NewHandlers(submitter, engine, store, hub)

	router := setupRouter(h)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	log.Info("Server exited")
}

func setupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	router.GET("/health", h.HealthCheck)
	router.GET("/ws", h.ListenStatus)

	api := router.Group("/api/v1")
	{
		api.POST("/reports", h.SubmitReport)
		api.GET("/venues", h.ListVenues)

		api.GET("/sync/status", h.SyncStatus)
		api.POST("/sync/trigger", h.TriggerSync)

		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("/summary", h.DashboardSummary)
			dashboard.GET("/recent", h.RecentReports)
			dashboard.GET("/departments", h.DepartmentStats)
			dashboard.GET("/network", h.ManagedUsers)
			dashboard.GET("/location-path", h.LocationPath)
		}
	}

	return router
}
