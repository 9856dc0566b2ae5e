package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mealgraph/internal/api"
	"mealgraph/internal/app"
	"mealgraph/internal/config"
	"mealgraph/internal/logger"
)

func main() {
	configPath := flag.String("config", envOr("MEALGRAPH_CONFIG", "config.json"), "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Errorf("invalid config: %w", err))
	}
	log := logger.New(cfg.Level(), os.Stderr)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		panic(err)
	}
	defer a.Close()

	handler := api.NewHandler(a.Store, a.Propagator, a.Engine, a.Likes, log)
	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(cfg, handler, limiter),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	stopSweep := make(chan struct{})
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				limiter.Sweep(10 * time.Minute)
			case <-stopSweep:
				return
			}
		}
	}()
	server.RegisterOnShutdown(func() { close(stopSweep) })

	go func() {
		log.Info("server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("could not listen on %s: %v", cfg.HTTPAddr, err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown
	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown: %v", err)
	}
}

func newRouter(cfg *config.Config, handler *api.Handler, limiter *api.RateLimiter) *gin.Engine {
	r := gin.Default()

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(limiter.Middleware())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	handler.Register(r)
	return r
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
