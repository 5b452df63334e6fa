package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mira-sales-pipeline/internal/adapters"
	"mira-sales-pipeline/internal/config"
	"mira-sales-pipeline/internal/handlers"
	"mira-sales-pipeline/internal/pkg/logger"
	"mira-sales-pipeline/internal/reliability"
	"mira-sales-pipeline/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting sales pipeline",
		"environment", cfg.Environment,
		"port", cfg.HTTP.Port)

	redisService, err := services.NewRedisService(cfg.Redis, log)
	if err != nil {
		log.Error("Failed to initialize redis service", "error", err.Error())
		os.Exit(1)
	}
	defer redisService.Close()

	extractionService, err := services.NewExtractionService(cfg.GenAI, log)
	if err != nil {
		log.Error("Failed to initialize extraction service", "error", err.Error())
		os.Exit(1)
	}

	pricingService, err := services.NewPricingService(cfg.Pricing, log)
	if err != nil {
		log.Error("Failed to load rate table", "error", err.Error())
		os.Exit(1)
	}

	metrics := reliability.NewMetrics()
	breakers := reliability.NewBreakerRegistry(cfg.Reliability, log)
	executor := reliability.NewExecutor(cfg.Reliability, breakers, metrics, log)

	messenger := adapters.NewHTTPMessenger(cfg.Outbound, log)
	crm := adapters.NewHTTPCRM(cfg.Outbound, log)
	alerter := adapters.NewHTTPAlerter(cfg.Outbound, log)

	rulesService := services.NewRulesService(cfg.Rules, log)
	dialogueService := services.NewDialogueService(cfg.Dialogue, log)
	composerService := services.NewComposerService(log)
	dealDesk := services.NewDealDeskService(crm, alerter, executor, log)

	orchestrator := services.NewOrchestrator(
		redisService,
		extractionService,
		pricingService,
		rulesService,
		dialogueService,
		composerService,
		dealDesk,
		messenger,
		alerter,
		cfg,
		metrics,
		log,
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	messageHandler := handlers.NewMessageHandler(orchestrator, executor.BreakerStates, log)
	pricingHandler := handlers.NewPricingHandler(pricingService, log)
	handlers.RegisterRoutes(router, messageHandler, pricingHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err.Error())
	}

	if err := orchestrator.Close(); err != nil {
		log.Error("Orchestrator shutdown failed", "error", err.Error())
	}

	log.Info("Sales pipeline stopped")
}
