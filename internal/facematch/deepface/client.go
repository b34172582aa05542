// Package deepface locates and embeds faces through the DeepFace REST API.
package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Config holds the configuration for the DeepFace client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Model          string
	Detector       string
	RetryCount     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig uses the dlib model, whose Euclidean distances line up with
// the usual 0.6 threshold, and the fast opencv detector.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:5005",
		Timeout:        30 * time.Second,
		Model:          "Dlib",
		Detector:       "opencv",
		RetryCount:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Client is the HTTP client for the DeepFace API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *zap.Logger
}

// NewClient creates a new DeepFace client.
func NewClient(config Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger.Named("deepface"),
	}
}

func (c *Client) represent(ctx context.Context, jpeg []byte) (*representResponse, error) {
	req := representRequest{
		Img:              "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
		ModelName:        c.config.Model,
		DetectorBackend:  c.config.Detector,
		EnforceDetection: false,
		Align:            true,
	}

	var resp representResponse
	if err := c.doWithRetry(ctx, http.MethodPost, "/represent", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, body, result any) error {
	backoff := retry.NewExponential(c.config.InitialBackoff)
	backoff = retry.WithCappedDuration(c.config.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(max(c.config.RetryCount, 0)), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.do(ctx, method, path, body, result)
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.clientError() {
			return err
		}
		if errors.Is(err, ErrInvalidResponse) || ctx.Err() != nil {
			return err
		}
		c.logger.Warn("deepface request failed", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var statusErr *StatusError
	if (errors.As(err, &statusErr) && statusErr.clientError()) || errors.Is(err, ErrInvalidResponse) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
