package worker

import (
	"log"
	"time"

	"caseflow/service"
)

// ReallocationWorker is a background worker that executes queued reallocation jobs
type ReallocationWorker struct {
	allocationService *service.AllocationService
	interval          time.Duration
	stopChan          chan struct{}
	running           bool
}

// NewReallocationWorker creates a new reallocation worker
func NewReallocationWorker(
	allocationService *service.AllocationService,
	interval time.Duration,
) *ReallocationWorker {
	return &ReallocationWorker{
		allocationService: allocationService,
		interval:          interval,
		stopChan:          make(chan struct{}),
		running:           false,
	}
}

// Start starts the reallocation worker
func (w *ReallocationWorker) Start() {
	if w.running {
		log.Println("Reallocation worker is already running")
		return
	}

	w.running = true
	log.Printf("Reallocation worker started (interval: %v)", w.interval)

	go w.run()
}

// Stop stops the reallocation worker
func (w *ReallocationWorker) Stop() {
	if !w.running {
		return
	}

	log.Println("Stopping reallocation worker...")
	close(w.stopChan)
	w.running = false
	log.Println("Reallocation worker stopped")
}

// run is the main worker loop
func (w *ReallocationWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.drainJobs()

	for {
		select {
		case <-ticker.C:
			w.drainJobs()
		case <-w.stopChan:
			return
		}
	}
}

// drainJobs executes pending jobs until the queue is empty.
// Job failures are recorded on the job row, not retried here.
func (w *ReallocationWorker) drainJobs() {
	for {
		processed, err := w.allocationService.ProcessNextJob()
		if err != nil {
			log.Printf("Error executing reallocation job: %v", err)
			return
		}
		if !processed {
			return
		}
	}
}
