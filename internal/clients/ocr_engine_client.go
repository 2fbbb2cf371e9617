/**
 * OCR Engine Client - Generative OCR over scanned documents
 *
 * The engine receives a whole document and returns one structured result
 * per page: markdown text, detected writing mode, layout info and the
 * figures the model believes it saw, with self-reported bounding boxes.
 * Model output is not guaranteed to be bare JSON; the parser tolerates a
 * fenced ```json code block around the payload.
 *
 * All calls run under the shared retry policy. Rate-limit responses carry
 * the engine's retry-after hint so backoff honors the server's pacing
 * instead of the computed delay.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/textbridge/ocr-worker/internal/errors"
	"github.com/textbridge/ocr-worker/internal/figure"
	"github.com/textbridge/ocr-worker/internal/logging"
	"github.com/textbridge/ocr-worker/internal/retry"
)

// OCREngineClient handles communication with the generative OCR engine
type OCREngineClient struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *logging.Logger
}

// ExtractRequest represents a whole-document extraction request
type ExtractRequest struct {
	Document string `json:"document"` // Base64 encoded PDF
	Format   string `json:"format"`   // "pdf"
	JobID    string `json:"job_id,omitempty"`
}

// ExtractResponse is the engine's envelope; Content holds the model output,
// either bare JSON or a fenced code block
type ExtractResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Content string `json:"content"`
	} `json:"data"`
}

// EnginePosition is a figure box as the engine reports it
type EnginePosition struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EngineFigure is one self-reported figure candidate
type EngineFigure struct {
	ID            int            `json:"id"`
	Position      EnginePosition `json:"position"`
	Type          string         `json:"type"`
	Description   string         `json:"description"`
	ExtractedText string         `json:"extracted_text"`
}

// PageResult is the engine's structured result for one page
type PageResult struct {
	PageNumber          int                    `json:"page_number"`
	DetectedWritingMode string                 `json:"detected_writing_mode"`
	MarkdownText        string                 `json:"markdown_text"`
	Figures             []EngineFigure         `json:"figures"`
	LayoutInfo          map[string]interface{} `json:"layout_info"`
}

// VerifyRequest asks the engine whether a crop is actually a figure
type VerifyRequest struct {
	Image       string `json:"image"` // Base64 encoded PNG
	ClaimedType string `json:"claimed_type,omitempty"`
}

// VerifyResponse is the engine's envelope for figure verification
type VerifyResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    figure.VerifyResult `json:"data"`
}

// NewOCREngineClient creates a new OCR engine client
func NewOCREngineClient(baseURL string, policy retry.Policy) *OCREngineClient {
	return &OCREngineClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 300 * time.Second, // whole-document extraction is slow
		},
		policy: policy,
		logger: logging.NewLogger("OCREngineClient"),
	}
}

// ExtractDocument extracts structured page content from a PDF. The call is
// retried on transport and rate-limit failures; a response that arrives but
// does not parse is surfaced immediately with the raw payload for
// diagnosis.
func (c *OCREngineClient) ExtractDocument(ctx context.Context, jobID string, pdfData []byte) ([]PageResult, error) {
	c.logger.Info("Requesting document extraction",
		"jobId", jobID,
		"documentSize", len(pdfData))

	req := &ExtractRequest{
		Document: base64.StdEncoding.EncodeToString(pdfData),
		Format:   "pdf",
		JobID:    jobID,
	}

	var body []byte
	err := retry.Do(ctx, "ocr-extract", c.policy, errors.IsRateLimited, func(ctx context.Context) error {
		var callErr error
		body, callErr = c.post(ctx, "/api/v1/ocr/extract", req)
		return callErr
	})
	if err != nil {
		return nil, errors.NewEngineError(jobID, "document extraction", err)
	}

	var envelope ExtractResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.NewParseError(jobID, "extraction envelope", string(body), err)
	}
	if !envelope.Success {
		return nil, errors.NewEngineError(jobID, "document extraction",
			fmt.Errorf("engine reported failure: %s", envelope.Message))
	}

	pages, err := ParsePagesPayload(envelope.Data.Content)
	if err != nil {
		return nil, errors.NewParseError(jobID, "page results", envelope.Data.Content, err)
	}

	c.logger.Info("Document extraction complete",
		"jobId", jobID,
		"pages", len(pages))
	return pages, nil
}

// VerifyFigure runs the secondary classification pass over one crop.
// Implements the verification contract consumed by the figure package.
func (c *OCREngineClient) VerifyFigure(ctx context.Context, pngImage []byte, claimed figure.Type) (*figure.VerifyResult, error) {
	req := &VerifyRequest{
		Image:       base64.StdEncoding.EncodeToString(pngImage),
		ClaimedType: string(claimed),
	}

	var body []byte
	err := retry.Do(ctx, "ocr-verify", c.policy, errors.IsRateLimited, func(ctx context.Context) error {
		var callErr error
		body, callErr = c.post(ctx, "/api/v1/ocr/verify-figure", req)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var envelope VerifyResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.NewParseError("", "verification response", string(body), err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("engine reported failure: %s", envelope.Message)
	}
	return &envelope.Data, nil
}

// HealthCheck verifies the engine is reachable
func (c *OCREngineClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine health check returned status %d", resp.StatusCode)
	}
	return nil
}

// post executes one JSON POST and classifies rate-limit responses so the
// retry policy can honor the engine's retry-after hint.
func (c *OCREngineClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "ocr-worker")
	httpReq.Header.Set("X-Request-ID", fmt.Sprintf("ocr-%d", time.Now().UnixNano()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to OCR engine failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewRateLimitError(path, parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("engine returned status 429"))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR engine returned error status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// parseRetryAfter reads a Retry-After header in delta-seconds form. Zero
// means no usable hint; the caller falls back to computed backoff.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// ParsePagesPayload decodes the engine's page results, tolerating a fenced
// ```json code block around the payload.
func ParsePagesPayload(content string) ([]PageResult, error) {
	raw := strings.TrimSpace(content)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}

	var pages []PageResult
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		return nil, fmt.Errorf("decoding page results: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("engine returned no pages")
	}
	return pages, nil
}
