package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/profitlens/profitlens/internal/cache"
	"github.com/profitlens/profitlens/internal/config"
	"github.com/profitlens/profitlens/internal/costs"
	"github.com/profitlens/profitlens/internal/database"
	"github.com/profitlens/profitlens/internal/handlers"
	"github.com/profitlens/profitlens/internal/models"
	"github.com/profitlens/profitlens/internal/services/square"
	"github.com/profitlens/profitlens/internal/utils"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Synchronize schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.CachedVariation{},
		&models.MerchantCache{},
		&models.SyncMetadata{},
		&models.UserAuth{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	if err := ensureDefaultAdmin(db); err != nil {
		log.Printf("⚠️ Could not ensure default admin: %v", err)
	}

	// 4. Stores
	cacheStore := cache.NewStore(db)
	costStore, err := costs.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to init cost override store: %v", err)
	}

	// 5. Background inventory sync
	interval := time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
	syncService := square.NewSyncService(cacheStore, square.EnvSource, interval)
	syncService.Start()

	// 6. HTTP router
	router := handlers.NewRouter(db, cfg, cacheStore, costStore, syncService)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop background sync
	syncService.Stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// ensureDefaultAdmin creates the initial admin login on first boot so the
// dashboard is reachable before any users are provisioned
func ensureDefaultAdmin(db *database.DB) error {
	var count int64
	if err := db.Model(&models.UserAuth{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@localhost"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "changeme"
		log.Println("⚠️  ADMIN_PASSWORD not set, using default. Change it after first login.")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.UserAuth{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         "admin",
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Default admin created (%s)", email)
	return nil
}
