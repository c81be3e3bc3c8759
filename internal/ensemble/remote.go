package ensemble

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/observa-labs/traffic-sentinel/internal/models"
)

// RemoteModel implements ScoringModel against an external scoring service
// that hosts the fitted estimators. One POST scores a whole vector; the four
// accessor methods share the response for the same vector.
type RemoteModel struct {
	baseURL    string
	scorePath  string
	httpClient *http.Client

	mu         sync.Mutex
	lastVector models.FeatureVector
	lastScores *remoteScores
}

type remoteScores struct {
	OutlierScore       float64 `json:"outlier_score"`
	MisuseProbability  float64 `json:"misuse_probability"`
	ClusterID          int     `json:"cluster_id"`
	FailureProbability float64 `json:"failure_probability"`
}

// NewRemoteModel constructs a client targeting the configured scoring service.
func NewRemoteModel(baseURL, scorePath string, timeout time.Duration) *RemoteModel {
	if scorePath == "" {
		scorePath = "/api/v1/score"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RemoteModel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		scorePath:  scorePath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// OutlierScore returns the unsupervised outlier signal for the vector.
func (m *RemoteModel) OutlierScore(v models.FeatureVector) (float64, error) {
	scores, err := m.score(v)
	if err != nil {
		return 0, err
	}
	return scores.OutlierScore, nil
}

// MisuseProbability returns the supervised misuse signal for the vector.
func (m *RemoteModel) MisuseProbability(v models.FeatureVector) (float64, error) {
	scores, err := m.score(v)
	if err != nil {
		return 0, err
	}
	return scores.MisuseProbability, nil
}

// ClusterID returns the behaviour cluster assigned to the vector.
func (m *RemoteModel) ClusterID(v models.FeatureVector) (int, error) {
	scores, err := m.score(v)
	if err != nil {
		return -1, err
	}
	return scores.ClusterID, nil
}

// FailureProbability returns the forward-looking failure signal.
func (m *RemoteModel) FailureProbability(v models.FeatureVector) (float64, error) {
	scores, err := m.score(v)
	if err != nil {
		return 0, err
	}
	return scores.FailureProbability, nil
}

func (m *RemoteModel) score(v models.FeatureVector) (remoteScores, error) {
	if m.baseURL == "" {
		return remoteScores{}, fmt.Errorf("scoring service base URL not configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastScores != nil && m.lastVector == v {
		return *m.lastScores, nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		return remoteScores{}, fmt.Errorf("encode score request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+m.scorePath, bytes.NewReader(body))
	if err != nil {
		return remoteScores{}, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return remoteScores{}, fmt.Errorf("scoring service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return remoteScores{}, fmt.Errorf("scoring service returned status %d", resp.StatusCode)
	}

	var scores remoteScores
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return remoteScores{}, fmt.Errorf("decode score response: %w", err)
	}

	m.lastVector = v
	m.lastScores = &scores
	return scores, nil
}
