package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"intake-backend/internal/shared/telemetry"
)

// HTTPExtractor calls a remote OCR engine. Scanned images have no text
// layer, so real deployments point this at an engine that does actual
// recognition; transient failures are retried with backoff and a 4xx
// answer is final.
type HTTPExtractor struct {
	BaseURL  string
	APIKey   string
	Client   *http.Client
	Attempts uint
}

// NewHTTPExtractor builds an extractor for the engine at baseURL.
func NewHTTPExtractor(baseURL, apiKey string) *HTTPExtractor {
	return &HTTPExtractor{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 60 * time.Second},
		Attempts: 3,
	}
}

type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Extract implements Extractor by POSTing the raw payload to {base}/ocr.
func (e *HTTPExtractor) Extract(ctx context.Context, data []byte, mimeType, fileName string) (Result, error) {
	var out ocrResponse
	err := retry.Do(
		func() error {
			return e.post(ctx, data, mimeType, fileName, &out)
		},
		retry.Context(ctx),
		retry.Attempts(e.Attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			telemetry.Warn("ocr.http_retry", map[string]any{
				"attempt": n + 1,
				"file":    fileName,
				"error":   err.Error(),
			})
		}),
	)
	if err != nil {
		return Result{}, fmt.Errorf("remote ocr: %w", err)
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return Result{Text: out.Text, Confidence: out.Confidence}, nil
}

func (e *HTTPExtractor) post(ctx context.Context, data []byte, mimeType, fileName string, out *ocrResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/ocr", bytes.NewReader(data))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-File-Name", fileName)
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return retry.Unrecoverable(fmt.Errorf("ocr engine responded %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ocr engine responded %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ocr response: %w", err)
	}
	return nil
}

var _ Extractor = (*HTTPExtractor)(nil)
