package adplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the breaker refuses requests.
var ErrCircuitOpen = errors.New("ad platform circuit breaker is open")

// Ad statuses understood by the platform.
const (
	AdStatusPaused = "PAUSED"
	AdStatusActive = "ACTIVE"
)

// Config 广告平台客户端配置
type Config struct {
	BaseURL           string
	TokenURL          string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	TokenCacheTTL     time.Duration
	Breaker           BreakerConfig
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://ads.example.com/api",
		TokenURL:          "https://ads.example.com/oauth/token",
		Timeout:           15 * time.Second,
		MaxRetries:        2,
		RetryDelay:        500 * time.Millisecond,
		RequestsPerSecond: 3,
		TokenCacheTTL:     30 * time.Minute,
		Breaker:           BreakerConfig{Enabled: true, MaxFailures: 5, ResetTimeout: time.Minute, HalfOpenMaxReqs: 1},
	}
}

// APIError is a non-2xx answer from the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ad platform error [%d]: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying may help.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client 广告平台 HTTP 客户端
type Client struct {
	cfg        *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *Breaker
	tokens     *tokenManager
	logger     *logrus.Logger
}

// NewClient 创建客户端；tokens 为空时 GetValidAccessToken 不可用
func NewClient(cfg *Config, tokens TokenStore, logger *logrus.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    NewBreaker(cfg.Breaker),
		logger:     logger,
	}
	c.tokens = newTokenManager(cfg, tokens, httpClient, logger)
	return c
}

// HTTPClient exposes the underlying client, e.g. for transport mocking.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// BreakerState 当前熔断状态
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// GetValidAccessToken returns a non-expired access token for the user, refreshing it when needed.
func (c *Client) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	return c.tokens.accessToken(ctx, userID)
}

// StopAd 暂停广告
func (c *Client) StopAd(ctx context.Context, token, adID, accountID string) error {
	return c.setAdStatus(ctx, token, adID, accountID, AdStatusPaused)
}

// ResumeAd 恢复投放
func (c *Client) ResumeAd(ctx context.Context, token, adID, accountID string) error {
	return c.setAdStatus(ctx, token, adID, accountID, AdStatusActive)
}

func (c *Client) setAdStatus(ctx context.Context, token, adID, accountID, status string) error {
	if token == "" {
		return errors.New("access token is required")
	}
	if adID == "" || accountID == "" {
		return errors.New("ad id and account id are required")
	}
	endpoint := fmt.Sprintf("/accounts/%s/ads/%s/status", url.PathEscape(accountID), url.PathEscape(adID))
	body := map[string]string{"status": status}
	if err := c.doRequestWithRetry(ctx, http.MethodPost, endpoint, token, body, nil); err != nil {
		return fmt.Errorf("set ad %s status %s: %w", adID, status, err)
	}
	c.logger.WithFields(logrus.Fields{"ad_id": adID, "account_id": accountID}).Infof("ad status set to %s", status)
	return nil
}

func (c *Client) createRequest(ctx context.Context, method, endpoint, token string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "adpilot/1.0")
	return req, nil
}

func (c *Client) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	c.logger.Debugf("ad platform %s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			if eb.Message != "" {
				apiErr.Message = eb.Message
			} else if eb.Error != "" {
				apiErr.Message = eb.Error
			}
		}
		return apiErr
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) doRequestWithRetry(ctx context.Context, method, endpoint, token string, body, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
			}
			c.logger.Warnf("ad platform retry attempt %d/%d: %v", attempt, c.cfg.MaxRetries, lastErr)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		req, err := c.createRequest(ctx, method, endpoint, token, body)
		if err != nil {
			return err
		}
		if !c.breaker.Allow() {
			return ErrCircuitOpen
		}

		err = c.doRequest(req, result)
		if err == nil {
			c.breaker.OnSuccess()
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			// 调用方取消，不代表平台状态
			c.breaker.OnAbort()
			return err
		}
		if !shouldRetry(err) {
			// 4xx 说明平台在线，不计入熔断
			c.breaker.OnSuccess()
			return err
		}
		c.breaker.OnFailure()
	}
	return lastErr
}

func shouldRetry(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
