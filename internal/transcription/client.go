package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ProviderHTTP is the name of the OpenAI-compatible multipart client
const ProviderHTTP = "http"

const transcriptionsPath = "/audio/transcriptions"

// Client provides HTTP client functionality for OpenAI-compatible transcription endpoints
type Client struct {
	config     Config
	endpoint   string
	httpClient *http.Client

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains transcription client configuration
type Config struct {
	BaseURL   string        // base URL or full transcriptions endpoint
	Model     string        // default model when the request has none
	Timeout   time.Duration // 0 means no client timeout
	UserAgent string
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient creates a new transcription HTTP client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if config.Model == "" {
		config.Model = "whisper-1"
	}

	if config.UserAgent == "" {
		config.UserAgent = "audio-transcriber/1.0"
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		endpoint:   resolveEndpoint(config.BaseURL),
		httpClient: httpClient,
	}, nil
}

// resolveEndpoint accepts both a base URL ("https://api.openai.com/v1") and a
// full endpoint URL.
func resolveEndpoint(baseURL string) string {
	url := strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(url, transcriptionsPath) {
		return url
	}
	return url + transcriptionsPath
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderHTTP }

// Endpoint returns the resolved transcriptions URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Transcribe sends the staged audio file in a single request. Failures are not retried.
func (c *Client) Transcribe(ctx context.Context, req *Request) (*Response, error) {
	if req.APIKey == "" {
		return nil, &Error{Kind: KindCredential, Op: "http.transcribe", Message: "missing API key"}
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	response, err := c.doRequest(ctx, req)
	if err != nil {
		c.incrementFailedRequests()
		return nil, err
	}

	c.incrementSuccessRequests()
	c.updateAvgResponseTime(time.Since(startTime))
	return response, nil
}

// doRequest performs a single HTTP request to the transcription API
func (c *Client) doRequest(ctx context.Context, req *Request) (*Response, error) {
	const op = "http.transcribe"

	file, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, NewError(KindLocalIO, op, fmt.Errorf("failed to open audio file: %w", err))
	}
	defer file.Close()

	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	// Stream the multipart body so the audio is not buffered twice
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(writer, file, filepath.Base(req.AudioPath), map[string]string{
			"model":           model,
			"language":        req.Language,
			"response_format": "json",
		}))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, NewError(KindProvider, op, fmt.Errorf("failed to create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isLocalReadError(err) {
			return nil, NewError(KindLocalIO, op, err)
		}
		return nil, ClassifyTransport(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindNetwork, op, fmt.Errorf("failed to read response body: %w", err))
	}

	if e := ClassifyStatus(op, resp.StatusCode, errorMessage(respBody)); e != nil {
		return nil, e
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewError(KindProvider, op, fmt.Errorf("failed to parse response JSON: %w", err))
	}

	return &Response{
		Text:     parsed.Text,
		Language: parsed.Language,
		Duration: parsed.Duration,
	}, nil
}

func writeMultipart(writer *multipart.Writer, audio io.Reader, filename string, fields map[string]string) error {
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := io.Copy(fileWriter, audio); err != nil {
		return &localReadError{err: err}
	}

	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	return writer.Close()
}

// localReadError marks a failure reading the staged file while streaming the body
type localReadError struct {
	err error
}

func (e *localReadError) Error() string { return "failed to read audio file: " + e.err.Error() }
func (e *localReadError) Unwrap() error { return e.err }

func isLocalReadError(err error) bool {
	var lr *localReadError
	return errors.As(err, &lr)
}

// errorMessage extracts the message from an OpenAI style error body,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
	}
}
