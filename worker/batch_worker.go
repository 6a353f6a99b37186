package worker

import (
	"log"
	"time"

	"caseflow/service"
)

// BatchWorker is a background worker that drains the UPLOADED batch queue and
// recovers batches stuck in PROCESSING after a crash
type BatchWorker struct {
	batchService   *service.BatchService
	interval       time.Duration
	staleThreshold time.Duration
	stopChan       chan struct{}
	running        bool
}

// NewBatchWorker creates a new batch worker
func NewBatchWorker(
	batchService *service.BatchService,
	interval time.Duration,
	staleThreshold time.Duration,
) *BatchWorker {
	return &BatchWorker{
		batchService:   batchService,
		interval:       interval,
		staleThreshold: staleThreshold,
		stopChan:       make(chan struct{}),
		running:        false,
	}
}

// Start starts the batch worker
// The worker runs in a separate goroutine and processes uploaded batches periodically
func (w *BatchWorker) Start() {
	if w.running {
		log.Println("Batch worker is already running")
		return
	}

	w.running = true
	log.Printf("Batch worker started (interval: %v, stale threshold: %v)", w.interval, w.staleThreshold)

	go w.run()
}

// Stop stops the batch worker
func (w *BatchWorker) Stop() {
	if !w.running {
		return
	}

	log.Println("Stopping batch worker...")
	close(w.stopChan)
	w.running = false
	log.Println("Batch worker stopped")
}

// run is the main worker loop
func (w *BatchWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Process immediately on start; a restart should not wait a full tick to
	// resume a backlog.
	w.recoverStale()
	w.drainQueue()

	for {
		select {
		case <-ticker.C:
			w.recoverStale()
			w.drainQueue()
		case <-w.stopChan:
			return
		}
	}
}

// drainQueue processes uploaded batches until the queue is empty.
// This method is idempotent - safe to call multiple times.
func (w *BatchWorker) drainQueue() {
	for {
		processed, err := w.batchService.ProcessNext()
		if err != nil {
			log.Printf("Error processing batch: %v", err)
			return
		}
		if !processed {
			return
		}
	}
}

// recoverStale fails batches that have been in PROCESSING too long
func (w *BatchWorker) recoverStale() {
	recovered, err := w.batchService.RecoverStaleBatches(w.staleThreshold)
	if err != nil {
		log.Printf("Error recovering stale batches: %v", err)
		return
	}
	if recovered > 0 {
		log.Printf("Recovered %d stale batches", recovered)
	}
}
