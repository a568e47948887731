// Package transcription uploads recorded audio to an OpenAI-compatible
// speech-to-text endpoint and returns the recognized text.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultEndpoint is the OpenAI transcription endpoint. Groq and other
// compatible providers work by overriding the endpoint in config.
const DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// DefaultTimeout bounds a single upload. There is no retry here; retry
// policy, if any, belongs to callers.
const DefaultTimeout = 60 * time.Second

// Error taxonomy for user-facing messaging. Callers that only need
// success-text vs failure-message can ignore the distinctions.
var (
	ErrAuth              = errors.New("transcription API rejected the credentials")
	ErrServer            = errors.New("transcription API server error")
	ErrMalformedResponse = errors.New("transcription API returned a malformed response")
)

// Request describes one transcription call
type Request struct {
	FilePath    string
	APIKey      string
	Model       string
	Language    string // empty = provider auto-detect
	Temperature float64
}

// Client performs transcription uploads
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for the given endpoint. An empty endpoint selects
// DefaultEndpoint; a nil httpClient gets the default timeout.
func New(endpoint string, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Transcribe uploads the audio file and returns the recognized text
func (c *Client) Transcribe(ctx context.Context, req Request) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("%w: API key is empty", ErrAuth)
	}

	f, err := os.Open(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(req.FilePath))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to copy audio file: %w", err)
	}

	if req.Model != "" {
		writer.WriteField("model", req.Model)
	}
	if req.Language != "" {
		writer.WriteField("language", req.Language)
	}
	writer.WriteField("temperature", strconv.FormatFloat(req.Temperature, 'f', -1, 64))
	writer.WriteField("response_format", "json")

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w (status %d): %s", ErrAuth, resp.StatusCode, errorDetail(respBody))
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w (status %d): %s", ErrServer, resp.StatusCode, errorDetail(respBody))
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, errorDetail(respBody))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return result.Text, nil
}

// errorDetail extracts the provider's error message when present
func errorDetail(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
