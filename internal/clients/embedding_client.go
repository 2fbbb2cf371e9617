/**
 * Embedding Client
 *
 * Generates VoyageAI voyage-3 embeddings (1024 dimensions) for the
 * document-level semantic index. Optional: when no API key is configured
 * the pipeline skips embedding and vector persistence entirely.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/textbridge/ocr-worker/internal/logging"
)

// EmbeddingClient handles VoyageAI embedding generation
type EmbeddingClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// VoyageEmbeddingRequest represents the request to VoyageAI API
type VoyageEmbeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// VoyageEmbeddingResponse represents the response from VoyageAI API
type VoyageEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewEmbeddingClient creates a new embedding client
func NewEmbeddingClient(apiKey string) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("VoyageAI API key is required")
	}
	return &EmbeddingClient{
		apiKey:  apiKey,
		baseURL: "https://api.voyageai.com/v1/embeddings",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NewLogger("EmbeddingClient"),
	}, nil
}

// GenerateEmbedding generates a 1024-dimensional embedding for the given
// text. Long documents are truncated to the provider's approximate token
// limit.
func (e *EmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	maxChars := 16000
	if len(text) > maxChars {
		e.logger.Warn("Text too long, truncating", "chars", len(text), "limit", maxChars)
		text = text[:maxChars]
	}

	reqBody := VoyageEmbeddingRequest{
		Input: text,
		Model: "voyage-3",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VoyageAI returned error status %d: %s", resp.StatusCode, string(body))
	}

	var embResp VoyageEmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("VoyageAI returned no embeddings")
	}

	e.logger.Debug("Embedding generated",
		"model", embResp.Model,
		"tokens", embResp.Usage.TotalTokens,
		"dimensions", len(embResp.Data[0].Embedding))
	return embResp.Data[0].Embedding, nil
}
