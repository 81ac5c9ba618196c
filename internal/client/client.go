package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/model"
)

// APIError 上游返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream api error: status %d: %s", e.StatusCode, e.Body)
}

// Permanent 4xx 语义性错误（404/403 等）重试也不会成功，
// 轮询方据此停止该任务的调度
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 &&
		e.StatusCode != http.StatusTooManyRequests &&
		e.StatusCode != http.StatusRequestTimeout
}

// Client 上游任务后端的 HTTP 客户端
type Client struct {
	baseURL  string
	apiToken string
	httpc    *http.Client
}

func New(cfg *config.UpstreamConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// GetJob 拉取任务全量快照
func (c *Client) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	if err := c.getJSON(ctx, "/api/jobs/"+jobID, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetStatus 拉取全局状态
func (c *Client) GetStatus(ctx context.Context) (*model.StatusOverview, error) {
	var overview model.StatusOverview
	if err := c.getJSON(ctx, "/api/status", &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// GetAnalysis 拉取分析任务的成品
func (c *Client) GetAnalysis(ctx context.Context, analysisID string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/analyses/"+analysisID)
}

// GetRecommendations 拉取某推荐类型的成品
func (c *Client) GetRecommendations(ctx context.Context, rt model.RecommendationType) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/recommendations?type="+string(rt))
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	raw, err := c.getRaw(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
