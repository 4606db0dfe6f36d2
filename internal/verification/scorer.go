package verification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BiometricScorer compares a captured sample against the employee's enrolled
// biometrics and returns a match confidence in [0, 100]. The implementation
// is an opaque external capability; any failure is mapped to a failed
// verification outcome by the manager, never a crash.
type BiometricScorer interface {
	Score(ctx context.Context, employeeID uint, sample []byte) (float64, error)
}

type scoreRequest struct {
	EmployeeID uint   `json:"employeeId"`
	Sample     string `json:"sample"` // base64 encoded capture
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// HTTPScorer calls the external face-match service.
type HTTPScorer struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPScorer(url, apiKey string, timeout time.Duration) *HTTPScorer {
	return &HTTPScorer{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPScorer) Score(ctx context.Context, employeeID uint, sample []byte) (float64, error) {
	body, err := json.Marshal(scoreRequest{
		EmployeeID: employeeID,
		Sample:     base64.StdEncoding.EncodeToString(sample),
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	if result.Score < 0 || result.Score > 100 {
		return 0, fmt.Errorf("scorer returned out of range score %v", result.Score)
	}
	return result.Score, nil
}
