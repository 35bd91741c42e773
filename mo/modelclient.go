package mo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ModelClient issues record edits against the registry's service API. Edits
// are field patches tagged with an entity type and a validity window.
type ModelClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewModelClient builds a ModelClient for the given registry base URL.
func NewModelClient(moURL string, httpClient *http.Client, log *zap.Logger) *ModelClient {
	return &ModelClient{baseURL: moURL, httpClient: httpClient, log: log}
}

// Edit posts one or more edit payloads to the registry. The registry applies
// them append-style: a new validity segment is opened without touching the
// end dates of earlier segments.
func (c *ModelClient) Edit(ctx context.Context, payloads []interface{}) error {
	body, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("marshalling edit payloads: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/service/details/edit", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building edit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting edit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("edit rejected with status %d: %s", resp.StatusCode, snippet)
	}

	c.log.Debug("Registry edit accepted", zap.Int("payloads", len(payloads)))
	return nil
}

// Health reports whether the service API answers the organisation listing.
// Any failure is a negative signal, never an error.
func (c *ModelClient) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/service/o/", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var orgs []struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&orgs); err != nil {
		return false
	}
	return len(orgs) > 0 && orgs[0].UUID != ""
}
