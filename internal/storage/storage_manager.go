/**
 * Storage Manager for the OCR pipeline worker
 *
 * Coordinates the three persistence targets of a completed document: the
 * output directory (merged markdown, figure images, figure metadata),
 * PostgreSQL (job state) and Qdrant (optional document embedding).
 * Filesystem writes happen only for verified figures and are rolled back
 * when the database update fails.
 */

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/textbridge/ocr-worker/internal/figure"
	"github.com/textbridge/ocr-worker/internal/logging"
)

// StorageManager coordinates filesystem, PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres  *PostgresClient
	qdrant    *QdrantClient // nil when vector persistence is disabled
	outputDir string
	logger    *logging.Logger
}

// DocumentOutput is everything a completed document persists
type DocumentOutput struct {
	JobID            string
	Markdown         string
	Crops            []figure.Crop
	Files            []figure.ExtractedFile
	PageCount        int
	ProcessingTimeMs int64
	Embedding        []float32 // optional
	Metadata         map[string]interface{}
}

// NewStorageManager creates a new storage manager. An empty qdrantAddress
// disables vector persistence.
func NewStorageManager(postgresURL, qdrantAddress, qdrantCollection, outputDir string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	var qc *QdrantClient
	if qdrantAddress != "" {
		qc, err = NewQdrantClient(qdrantAddress, qdrantCollection)
		if err != nil {
			postgres.Close()
			return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		postgres.Close()
		if qc != nil {
			qc.Close()
		}
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &StorageManager{
		postgres:  postgres,
		qdrant:    qc,
		outputDir: outputDir,
		logger:    logging.NewLogger("StorageManager"),
	}, nil
}

// UpdateDocumentStatus delegates to PostgreSQL.
func (sm *StorageManager) UpdateDocumentStatus(ctx context.Context, update *DocumentUpdate) error {
	return sm.postgres.UpdateDocumentStatus(ctx, update)
}

// PersistDocument writes one completed document's artifacts. Order:
// filesystem first, then the optional vector, then the terminal database
// row; each later failure rolls back the earlier writes so a document is
// never half-persisted.
func (sm *StorageManager) PersistDocument(ctx context.Context, out *DocumentOutput) (string, error) {
	if out == nil {
		return "", fmt.Errorf("output is required")
	}
	if out.JobID == "" {
		return "", fmt.Errorf("job ID is required")
	}

	docDir := filepath.Join(sm.outputDir, out.JobID)
	if err := sm.writeFiles(docDir, out); err != nil {
		os.RemoveAll(docDir)
		return "", fmt.Errorf("failed to write document output: %w", err)
	}

	pointID := ""
	if sm.qdrant != nil && len(out.Embedding) > 0 {
		pointID = uuid.New().String()
		err := sm.qdrant.UpsertDocument(ctx, &DocumentVector{
			ID:     pointID,
			Vector: out.Embedding,
			Metadata: map[string]interface{}{
				"job_id":       out.JobID,
				"page_count":   out.PageCount,
				"figure_count": len(out.Files),
				"created_at":   time.Now().Unix(),
			},
		})
		if err != nil {
			// Vector persistence is best-effort; a missing embedding must
			// not lose the document.
			sm.logger.Warn("vector persistence failed, continuing",
				"jobId", out.JobID, "error", err)
			pointID = ""
		}
	}

	metadata := out.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if pointID != "" {
		metadata["qdrant_point_id"] = pointID
	}

	err := sm.postgres.UpdateDocumentStatus(ctx, &DocumentUpdate{
		JobID:            out.JobID,
		Status:           "completed",
		PageCount:        out.PageCount,
		FigureCount:      len(out.Files),
		ProcessingTimeMs: out.ProcessingTimeMs,
		OutputPath:       docDir,
		Metadata:         metadata,
	})
	if err != nil {
		os.RemoveAll(docDir)
		if pointID != "" {
			if delErr := sm.qdrant.DeleteDocument(ctx, pointID); delErr != nil {
				sm.logger.Error("rollback of document vector failed",
					"jobId", out.JobID, "pointId", pointID, "error", delErr)
			}
		}
		return "", fmt.Errorf("failed to record completion: %w", err)
	}

	sm.logger.Info("document persisted",
		"jobId", out.JobID,
		"path", docDir,
		"figures", len(out.Files))
	return docDir, nil
}

// writeFiles lays out one document directory:
//
//	{jobID}/master.md
//	{jobID}/figures.json
//	{jobID}/figures/page_N_fig_M.png
func (sm *StorageManager) writeFiles(docDir string, out *DocumentOutput) error {
	figuresDir := filepath.Join(docDir, "figures")
	if err := os.MkdirAll(figuresDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", figuresDir, err)
	}

	if err := os.WriteFile(filepath.Join(docDir, "master.md"), []byte(out.Markdown), 0o644); err != nil {
		return fmt.Errorf("writing master.md: %w", err)
	}

	for _, crop := range out.Crops {
		path := filepath.Join(figuresDir, crop.Figure.FileName())
		if err := os.WriteFile(path, crop.PNG, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	filesJSON, err := json.MarshalIndent(out.Files, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling figures.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(docDir, "figures.json"), filesJSON, 0o644); err != nil {
		return fmt.Errorf("writing figures.json: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is reachable
func (sm *StorageManager) HealthCheck(ctx context.Context) error {
	return sm.postgres.HealthCheck(ctx)
}

// Close closes all storage connections
func (sm *StorageManager) Close() error {
	var firstErr error
	if err := sm.postgres.Close(); err != nil {
		firstErr = err
	}
	if sm.qdrant != nil {
		if err := sm.qdrant.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
