package main

import (
	"alcyxob/coursevault/internal/api"
	"alcyxob/coursevault/internal/config"
	"alcyxob/coursevault/internal/contentstore"
	"alcyxob/coursevault/internal/repository/mongo"
	"alcyxob/coursevault/internal/service"
	"alcyxob/coursevault/internal/source"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
)

// @title CourseVault API
// @version 1.0
// @description Content-addressable backup service for course assets.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	log.Println("Starting CourseVault server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	// The partial unique index on cid_records is what makes the
	// one-pinned-record-per-hash invariant hold across processes, so index
	// creation runs before the server starts taking uploads.
	indexCtx, indexCancel := context.WithTimeout(context.Background(), 1*time.Minute)
	mongo.EnsureAssetIndexes(indexCtx, appDB.Collection("assets"))
	mongo.EnsureCidRecordIndexes(indexCtx, appDB.Collection("cid_records"))
	indexCancel()
	log.Println("Database indexes ensured.")

	// --- Initialize Content Store ---
	// An unreachable IPFS node is logged inside the constructor but does
	// not stop the server: uploads will fail transiently and the sweep
	// picks them up once the node recovers.
	log.Println("Initializing IPFS content store...")
	store := contentstore.NewIPFSStore(cfg.IPFS)

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	assetRepo := mongo.NewMongoAssetRepository(appDB)
	cidRecordRepo := mongo.NewMongoCidRecordRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	sourceStore := source.NewFileStore(afero.NewOsFs(), cfg.Backup.StagingDir)
	dedupIndex := service.NewDedupIndex(cidRecordRepo)
	backupService := service.NewBackupService(assetRepo, cidRecordRepo, dedupIndex, store, sourceStore, cfg.IPFS.PinOnWrite, cfg.Backup.MaxErrorLength)
	restoreService := service.NewRestoreService(cidRecordRepo, store)
	sweeperService := service.NewSweeperService(assetRepo, cidRecordRepo, backupService, sourceStore, cfg.Backup)

	// --- Start Sweep Scheduler ---
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go sweeperService.RunScheduler(schedulerCtx)

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware
	api.SetupRoutes(router, backupService, restoreService, sweeperService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopScheduler()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
