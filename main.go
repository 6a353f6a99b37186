package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"caseflow/config"
	"caseflow/repository"
	"caseflow/routes"
	"caseflow/schema"
	"caseflow/service"
	"caseflow/worker"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database connection
	db, err := sql.Open("mysql", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Database connection established")

	// Create tables that do not exist yet
	schema.InitializeDatabase(db)

	// Initialize repositories
	allocationRepo := repository.NewAllocationRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	batchRepo := repository.NewBatchRepository(db)

	// Initialize services
	allocationService := service.NewAllocationService(allocationRepo, agentRepo, batchRepo)
	ruleService := service.NewRuleService(ruleRepo, caseRepo, agentRepo, allocationService)
	batchService := service.NewBatchService(
		batchRepo,
		caseRepo,
		agentRepo,
		allocationService,
		cfg.Upload.BasePath,
		cfg.Batch.ChunkSize,
	)
	analysisService := service.NewFailureAnalysisService(batchRepo)

	// Background workers: one drains the batch upload queue, one executes
	// queued reallocation jobs.
	batchWorker := worker.NewBatchWorker(
		batchService,
		time.Duration(cfg.Batch.WorkerIntervalSeconds)*time.Second,
		time.Duration(cfg.Batch.StaleProcessingMinutes)*time.Minute,
	)
	batchWorker.Start()

	reallocationWorker := worker.NewReallocationWorker(
		allocationService,
		time.Duration(cfg.Batch.JobWorkerIntervalSeconds)*time.Second,
	)
	reallocationWorker.Start()

	// Setup routes
	router := routes.SetupRoutes(
		allocationService,
		ruleService,
		batchService,
		analysisService,
		agentRepo,
		caseRepo,
	)

	// Add CORS middleware
	corsHandler := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-ID, X-Actor-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server listening on %s", addr)
	if err := http.ListenAndServe(addr, corsHandler(router)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
