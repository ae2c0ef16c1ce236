package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"intake-backend/internal/shared/telemetry"
)

// HTTPSource queries a remote patient registry over HTTP. Transient
// failures are retried with backoff; a 4xx answer is treated as final.
type HTTPSource struct {
	BaseURL  string
	APIKey   string
	Client   *http.Client
	Attempts uint
}

// NewHTTPSource builds a source for the registry at baseURL. apiKey may be
// empty for registries behind network auth.
func NewHTTPSource(baseURL, apiKey string) *HTTPSource {
	return &HTTPSource{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Attempts: 3,
	}
}

// Name implements Source.
func (s *HTTPSource) Name() string { return "http" }

type remotePatient struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	NationalID string `json:"nationalId"`
	Phone      string `json:"phone"`
}

// Search calls GET {base}/patients?q={query} and maps the response.
func (s *HTTPSource) Search(ctx context.Context, query string) ([]Candidate, error) {
	endpoint := fmt.Sprintf("%s/patients?q=%s", s.BaseURL, url.QueryEscape(query))

	var patients []remotePatient
	err := retry.Do(
		func() error {
			return s.fetch(ctx, endpoint, &patients)
		},
		retry.Context(ctx),
		retry.Attempts(s.Attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			telemetry.Warn("registry.http_retry", map[string]any{
				"attempt": n + 1,
				"error":   err.Error(),
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("remote registry search: %w", err)
	}

	out := make([]Candidate, 0, len(patients))
	for _, p := range patients {
		out = append(out, Candidate{
			ID:          p.ID,
			DisplayName: p.Name,
			NationalID:  p.NationalID,
			Phone:       p.Phone,
		})
	}
	return out, nil
}

func (s *HTTPSource) fetch(ctx context.Context, endpoint string, into *[]remotePatient) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return retry.Unrecoverable(fmt.Errorf("registry responded %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry responded %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}
	return nil
}

var _ Source = (*HTTPSource)(nil)
