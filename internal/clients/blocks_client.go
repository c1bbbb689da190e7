/**
 * OCR Blocks Client for the highlight worker
 *
 * Fetches the OCR block hierarchy of a document from the FileProcess API.
 * This is the network block-fetch collaborator used when the worker has no
 * direct database access.
 */

package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	herrors "github.com/adverant/nexus/ocr-highlight-worker/internal/errors"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
)

// BlocksClient handles communication with the FileProcess API for OCR blocks
type BlocksClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// BlocksResponse represents the response envelope of the blocks endpoint
type BlocksResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Blocks []ocr.Block `json:"blocks"`
	} `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewBlocksClient creates a new blocks client
func NewBlocksClient(baseURL, apiKey string, timeout time.Duration) *BlocksClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BlocksClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// HealthCheck verifies the FileProcess API is available
func (c *BlocksClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("FileProcess API health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("FileProcess API health check returned status %d", resp.StatusCode)
	}

	return nil
}

// FetchBlocks retrieves all OCR blocks of a document
func (c *BlocksClient) FetchBlocks(ctx context.Context, orgID, docID string) ([]ocr.Block, error) {
	if orgID == "" || docID == "" {
		return nil, fmt.Errorf("organization ID and document ID are required")
	}

	endpoint := fmt.Sprintf("%s/api/organizations/%s/documents/%s/ocr-blocks",
		c.baseURL, url.PathEscape(orgID), url.PathEscape(docID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blocks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blocks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, herrors.NewAPICallFailedError("ocr-blocks", resp.StatusCode, string(body))
	}

	var result BlocksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, herrors.NewBlockDecodeError("fileprocess-api", err)
	}

	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = result.Message
		}
		return nil, fmt.Errorf("FileProcess API reported failure: %s", msg)
	}

	for _, b := range result.Data.Blocks {
		if err := b.Validate(); err != nil {
			return nil, herrors.NewBlockDecodeError("fileprocess-api", err)
		}
	}

	return result.Data.Blocks, nil
}
