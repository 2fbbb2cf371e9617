/**
 * Queue Consumer for the OCR pipeline worker
 *
 * Consumes document jobs from the Redis-backed queue and runs them through
 * the document processor. Uses Asynq for queue management; one asynq task
 * per uploaded document, retried with capped exponential backoff.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/textbridge/ocr-worker/internal/errors"
	"github.com/textbridge/ocr-worker/internal/processor"
	"github.com/textbridge/ocr-worker/internal/storage"
)

// TaskProcessDocument is the asynq task type for one document job.
const TaskProcessDocument = "ocr:process-document"

// JobData is the task payload. Small documents travel inline in
// FileBuffer; larger ones reference a path on the shared volume.
type JobData struct {
	JobID      string                 `json:"jobId"`
	Filename   string                 `json:"filename"`
	FileBuffer []byte                 `json:"fileBuffer,omitempty"`
	FilePath   string                 `json:"filePath,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// DocumentProcessorInterface is what the consumer needs from the pipeline.
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error)
}

// Consumer handles job consumption from the Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor DocumentProcessorInterface
	storage   *storage.StorageManager
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Processor   DocumentProcessorInterface
	Storage     *storage.StorageManager
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("Storage is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// 5s, 10s, 20s, ... capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		storage:   cfg.Storage,
		config:    cfg,
	}
	mux.HandleFunc(TaskProcessDocument, consumer.handleProcessDocument)

	return consumer, nil
}

// EnqueueDocument submits one document job, used by tooling and tests.
func (c *Consumer) EnqueueDocument(ctx context.Context, job *JobData) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job data: %w", err)
	}
	task := asynq.NewTask(TaskProcessDocument, payload)
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.config.QueueName))
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")
	c.server.Shutdown()
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}
	log.Printf("Queue consumer stopped")
	return nil
}

// handleProcessDocument processes one document job.
func (c *Consumer) handleProcessDocument(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var jobData JobData
	if err := json.Unmarshal(task.Payload(), &jobData); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	pdf := jobData.FileBuffer
	if len(pdf) == 0 && jobData.FilePath != "" {
		var err error
		pdf, err = os.ReadFile(jobData.FilePath)
		if err != nil {
			c.markFailed(jobData.JobID, errors.NewResourceError(jobData.JobID, 0,
				fmt.Sprintf("unreadable document file: %v", err)))
			return fmt.Errorf("failed to read document file: %w", err)
		}
	}

	log.Printf("[Job %s] Processing document: filename=%s, size=%d bytes",
		jobData.JobID, jobData.Filename, len(pdf))

	result, err := c.processor.ProcessDocument(ctx, &processor.ProcessRequest{
		JobID:    jobData.JobID,
		FileName: jobData.Filename,
		PDF:      pdf,
	})

	duration := time.Since(startTime)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.NewProcessingTimeoutError(jobData.JobID, duration, err)
		}
		log.Printf("[Job %s] Processing failed after %v: %v", jobData.JobID, duration, err)
		c.markFailed(jobData.JobID, err)
		return fmt.Errorf("document processing failed: %w", err)
	}

	log.Printf("[Job %s] Processing completed in %v: pages=%d, figures=%d, output=%s",
		jobData.JobID, duration, result.PageCount, result.FigureCount, result.OutputPath)
	return nil
}

// markFailed records the terminal failure state. A structured pipeline
// error contributes its code and details. Runs on a fresh context because
// the job context may already be cancelled.
func (c *Consumer) markFailed(jobID string, err error) {
	update := &storage.DocumentUpdate{
		JobID:        jobID,
		Status:       "failed",
		ErrorMessage: err.Error(),
	}
	var pe *errors.PipelineError
	if stderrors.As(err, &pe) {
		update.ErrorCode = string(pe.Code)
		update.Metadata = pe.ToMap()
	}

	storeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if updateErr := c.storage.UpdateDocumentStatus(storeCtx, update); updateErr != nil {
		log.Printf("[Job %s] Warning: Failed to update status to failed: %v", jobID, updateErr)
	}
}
