/**
 * OCR Pipeline Worker - Main Entry Point
 *
 * Go worker for scanned-textbook OCR with hybrid figure detection.
 *
 * Architecture:
 * - Asynq consumer for Redis-backed document jobs
 * - Generative OCR extraction with per-page structured results
 * - Vision layout detection reconciled against OCR figure candidates
 * - Coordinate repair, crop extraction and secondary verification
 * - Merged markdown + figure metadata output per document
 * - PostgreSQL job state, optional Qdrant document embeddings
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/textbridge/ocr-worker/internal/config"
	"github.com/textbridge/ocr-worker/internal/processor"
	"github.com/textbridge/ocr-worker/internal/queue"
	"github.com/textbridge/ocr-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("OCR pipeline worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Engine=%s, Detector=%s, Workers=%d",
		cfg.RedisURL, cfg.OCREngineURL, cfg.DetectorURL, cfg.WorkerConcurrency)

	log.Printf("Connecting to storage...")
	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.QdrantURL,
		cfg.QdrantCollection,
		cfg.OutputDir,
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	log.Printf("Storage manager initialized")

	events, err := queue.NewEventPublisher(cfg.RedisURL, "ocr:events")
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer events.Close()

	log.Printf("Initializing document processor...")
	proc, err := processor.NewDocumentProcessor(cfg, storageManager, events)
	if err != nil {
		log.Fatalf("Failed to initialize document processor: %v", err)
	}
	log.Printf("Document processor initialized")

	log.Printf("Connecting to Redis queue...")
	queueConsumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		QueueName:   "ocr:documents",
		Concurrency: cfg.WorkerConcurrency,
		Processor:   proc,
		Storage:     storageManager,
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	if err := queueConsumer.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("OCR pipeline worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: ocr:documents")
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Detector concurrency: %d", cfg.DetectorConcurrency)
	log.Printf("Output directory: %s", cfg.OutputDir)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queueConsumer.Stop(ctx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}
	log.Printf("Shutdown complete")
}
