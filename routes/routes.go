package routes

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caseflow/handler"
	"caseflow/metrics"
	"caseflow/middleware"
	"caseflow/repository"
	"caseflow/service"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	allocationService *service.AllocationService,
	ruleService *service.RuleService,
	batchService *service.BatchService,
	analysisService *service.FailureAnalysisService,
	agentRepo *repository.AgentRepository,
	caseRepo *repository.CaseRepository,
) *mux.Router {
	router := mux.NewRouter()

	// Initialize handlers
	allocationHandler := handler.NewAllocationHandler(allocationService)
	ruleHandler := handler.NewRuleHandler(ruleService)
	batchHandler := handler.NewBatchHandler(batchService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	directoryHandler := handler.NewDirectoryHandler(agentRepo, caseRepo)

	// Actor attribution: every mutation is written to the ledger with the
	// caller's identity, falling back to the system actor.
	jwtSecret := os.Getenv("JWT_SECRET")
	actorMiddleware := middleware.NewActorMiddleware(jwtSecret)

	// API v1 routes
	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(actorMiddleware.Attribute)

	// Single-case allocation routes
	allocations := apiV1.PathPrefix("/allocations").Subrouter()
	allocations.HandleFunc("", allocationHandler.Allocate).Methods("POST")
	allocations.HandleFunc("/deallocate", allocationHandler.Deallocate).Methods("POST")
	allocations.HandleFunc("/{caseId}", allocationHandler.GetAllocation).Methods("GET")
	allocations.HandleFunc("/{caseId}/history", allocationHandler.GetHistory).Methods("GET")

	// Directory sync (agents and cases are owned upstream, pushed here)
	cases := apiV1.PathPrefix("/cases").Subrouter()
	cases.HandleFunc("/{caseId}", directoryHandler.GetCase).Methods("GET")
	cases.HandleFunc("/{caseId}", directoryHandler.UpsertCase).Methods("PUT")
	agents := apiV1.PathPrefix("/agents").Subrouter()
	agents.HandleFunc("/{agentId}", directoryHandler.GetAgent).Methods("GET")
	agents.HandleFunc("/{agentId}", directoryHandler.UpsertAgent).Methods("PUT")

	// Derived workload view
	apiV1.HandleFunc("/workload", allocationHandler.GetWorkloads).Methods("GET")

	// Async bulk reallocation
	reallocations := apiV1.PathPrefix("/reallocations").Subrouter()
	reallocations.HandleFunc("/by-agent", allocationHandler.ReallocateByAgent).Methods("POST")
	reallocations.HandleFunc("/by-filter", allocationHandler.ReallocateByFilter).Methods("POST")
	reallocations.HandleFunc("/{jobId}", allocationHandler.GetJob).Methods("GET")

	// Allocation rules
	rules := apiV1.PathPrefix("/rules").Subrouter()
	rules.HandleFunc("", ruleHandler.ListRules).Methods("GET")
	rules.HandleFunc("", ruleHandler.CreateRule).Methods("POST")
	rules.HandleFunc("/{ruleId}", ruleHandler.GetRule).Methods("GET")
	rules.HandleFunc("/{ruleId}", ruleHandler.UpdateRule).Methods("PUT")
	rules.HandleFunc("/{ruleId}", ruleHandler.DeactivateRule).Methods("DELETE")
	rules.HandleFunc("/{ruleId}/simulate", ruleHandler.Simulate).Methods("POST")
	rules.HandleFunc("/{ruleId}/apply", ruleHandler.Apply).Methods("POST")

	// Batch uploads
	batches := apiV1.PathPrefix("/batches").Subrouter()
	batches.HandleFunc("", batchHandler.Upload).Methods("POST")
	batches.HandleFunc("/{batchId}", batchHandler.GetBatch).Methods("GET")
	batches.HandleFunc("/{batchId}/errors", batchHandler.GetErrors).Methods("GET")
	batches.HandleFunc("/{batchId}/errors/export", batchHandler.ExportErrors).Methods("GET")
	batches.HandleFunc("/{batchId}/export", batchHandler.ExportBatch).Methods("GET")
	batches.HandleFunc("/{batchId}/analysis", analysisHandler.AnalyzeBatch).Methods("GET")

	// Failure analysis across batches
	apiV1.HandleFunc("/analysis/summary", analysisHandler.Summary).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	return router
}
