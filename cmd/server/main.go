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

	"pmccentre.com/pmc-assistant/internal/api"
	"pmccentre.com/pmc-assistant/internal/auth"
	"pmccentre.com/pmc-assistant/internal/config"
	"pmccentre.com/pmc-assistant/internal/core"
	"pmccentre.com/pmc-assistant/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize persistence
	dbStore, err := store.New(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize auth service and bootstrap the admin account
	authService := auth.NewService(dbStore, config.AppConfig.AdminEmail)
	if err := authService.Bootstrap(); err != nil {
		log.Fatalf("Failed to bootstrap admin account: %v", err)
	}

	// Initialize completion gateway
	gateway, err := core.NewGateway(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize completion gateway: %v", err)
	}

	// Initialize chat sessions and admin view
	sessionManager := core.NewSessionManager(dbStore, gateway)
	adminService := core.NewAdminService(dbStore, config.AppConfig.AdminEmail)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(authService, sessionManager, adminService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // completions can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
