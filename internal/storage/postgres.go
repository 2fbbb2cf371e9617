/**
 * PostgreSQL Client for the OCR pipeline worker
 *
 * Persists document job state. The API service normally creates the row;
 * the worker upserts so a status update never fails just because the row
 * is missing.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// DocumentUpdate represents one document's status transition
type DocumentUpdate struct {
	JobID            string
	Status           string
	PageCount        int
	FigureCount      int
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	OutputPath       string
	Metadata         map[string]interface{}
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateDocumentStatus upserts one document's processing state.
func (p *PostgresClient) UpdateDocumentStatus(ctx context.Context, update *DocumentUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO ocrpipeline.translation_documents (
			id, status, page_count, figure_count, processing_time_ms,
			error_code, error_message, output_path, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, NULLIF($3, 0), NULLIF($4, 0), NULLIF($5, 0),
			NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			COALESCE($9::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			page_count = COALESCE(NULLIF(EXCLUDED.page_count, 0), ocrpipeline.translation_documents.page_count),
			figure_count = COALESCE(EXCLUDED.figure_count, ocrpipeline.translation_documents.figure_count),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), ocrpipeline.translation_documents.processing_time_ms),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			output_path = COALESCE(NULLIF(EXCLUDED.output_path, ''), ocrpipeline.translation_documents.output_path),
			metadata = COALESCE(EXCLUDED.metadata, ocrpipeline.translation_documents.metadata),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,
		update.Status,
		update.PageCount,
		update.FigureCount,
		update.ProcessingTimeMs,
		update.ErrorCode,
		update.ErrorMessage,
		update.OutputPath,
		metadataJSON,
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("document not found: %s", update.JobID)
	}
	if err != nil {
		return fmt.Errorf("failed to update document status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}
	return nil
}

// GetDocumentStatus reads one document's current status.
func (p *PostgresClient) GetDocumentStatus(ctx context.Context, jobID string) (string, error) {
	var status string
	err := p.db.QueryRowContext(ctx,
		`SELECT status FROM ocrpipeline.translation_documents WHERE id = $1::uuid`,
		jobID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("document not found: %s", jobID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document status: %w", err)
	}
	return status, nil
}

// HealthCheck verifies the database connection
func (p *PostgresClient) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	return p.db.Close()
}
