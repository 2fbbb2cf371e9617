/**
 * Layout Detector Client - Vision-based document layout detection
 *
 * Talks to the layout-detection model service. The model works at its own
 * fixed raster resolution and returns boxes in that space with a closed
 * label vocabulary; rescaling and label mapping happen downstream.
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
	"time"

	"github.com/textbridge/ocr-worker/internal/figure"
	"github.com/textbridge/ocr-worker/internal/geometry"
	"github.com/textbridge/ocr-worker/internal/logging"
)

// LayoutDetectorClient handles communication with the detection service
type LayoutDetectorClient struct {
	baseURL    string
	threshold  float64
	httpClient *http.Client
	logger     *logging.Logger
}

// DetectRequest carries one page image
type DetectRequest struct {
	Image     string  `json:"image"` // Base64 encoded PNG
	Threshold float64 `json:"threshold"`
}

// DetectResponse is the detection service envelope
type DetectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Regions []struct {
			Box   [4]int  `json:"box"` // x, y, width, height
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"regions"`
	} `json:"data"`
}

// NewLayoutDetectorClient creates a new detector client
func NewLayoutDetectorClient(baseURL string, threshold float64) *LayoutDetectorClient {
	return &LayoutDetectorClient{
		baseURL:   baseURL,
		threshold: threshold,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logging.NewLogger("LayoutDetectorClient"),
	}
}

// Detect returns the model's raw regions for one page image.
func (c *LayoutDetectorClient) Detect(ctx context.Context, pngImage []byte) ([]figure.RawRegion, error) {
	req := &DetectRequest{
		Image:     base64.StdEncoding.EncodeToString(pngImage),
		Threshold: c.threshold,
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/layout/detect", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "ocr-worker")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to detector failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector returned error status %d: %s", resp.StatusCode, string(body))
	}

	var envelope DetectResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("detector operation failed: %s", envelope.Message)
	}

	regions := make([]figure.RawRegion, 0, len(envelope.Data.Regions))
	for _, r := range envelope.Data.Regions {
		regions = append(regions, figure.RawRegion{
			Box:   geometry.Box{X: r.Box[0], Y: r.Box[1], Width: r.Box[2], Height: r.Box[3]},
			Label: r.Label,
			Score: r.Score,
		})
	}

	c.logger.Debug("Detection complete", "regions", len(regions))
	return regions, nil
}

// HealthCheck verifies the detection service is reachable
func (c *LayoutDetectorClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("detector unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector health check returned status %d", resp.StatusCode)
	}
	return nil
}
