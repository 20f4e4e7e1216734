package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"tradebot-go/internal/metrics"
)

// DefaultFearGreedURL serves the crypto fear & greed index.
const DefaultFearGreedURL = "https://api.alternative.me"

var errNoSource = errors.New("source not configured")

// FearGreedClient reads the latest index value over HTTP with one retry.
type FearGreedClient struct {
	client *resty.Client
}

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
}

// NewFearGreedClient applies a request timeout and a single retry with backoff.
func NewFearGreedClient(baseURL string, timeout, retryWait time.Duration) *FearGreedClient {
	if baseURL == "" {
		baseURL = DefaultFearGreedURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retryWait <= 0 {
		retryWait = 500 * time.Millisecond
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(4*retryWait).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "tradebot-go/1.0")
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == 429 || r.StatusCode() >= 500
	})
	return &FearGreedClient{client: client}
}

// Index fetches the most recent value.
func (c *FearGreedClient) Index(ctx context.Context) (Index, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("limit", "1").
		Get("/fng/")
	if err != nil {
		metrics.ExternalErrorsTotal.WithLabelValues("fear_greed").Inc()
		return Index{}, fmt.Errorf("fetch fear & greed: %w", err)
	}
	if resp.StatusCode() != 200 {
		metrics.ExternalErrorsTotal.WithLabelValues("fear_greed").Inc()
		return Index{}, fmt.Errorf("fear & greed status %d", resp.StatusCode())
	}

	var payload fngResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return Index{}, fmt.Errorf("decode fear & greed: %w", err)
	}
	if len(payload.Data) == 0 {
		return Index{}, fmt.Errorf("fear & greed returned no data")
	}
	value, err := strconv.Atoi(strings.TrimSpace(payload.Data[0].Value))
	if err != nil {
		return Index{}, fmt.Errorf("parse fear & greed value %q: %w", payload.Data[0].Value, err)
	}
	if value < 0 || value > 100 {
		return Index{}, fmt.Errorf("fear & greed value %d out of range", value)
	}
	return Index{Value: value, Classification: payload.Data[0].Classification}, nil
}
