package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIClient is the HTTP Source backed by the audio API.
type APIClient struct {
	baseURL string
	nonce   string
	client  *http.Client
}

var _ Source = (*APIClient)(nil)

// NewAPIClient talks to the API rooted at baseURL (e.g. https://blog.example.com/v1).
// An empty nonce is fetched from the API on first use.
func NewAPIClient(baseURL, nonce string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		nonce:   nonce,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	return e.Message
}

type audioURLResponse struct {
	AudioURL string `json:"audio_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

func (c *APIClient) Check(ctx context.Context, req Request) (string, bool, error) {
	u, err := c.post(ctx, "/audio/check", req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return u, true, nil
}

func (c *APIClient) Generate(ctx context.Context, req Request) (string, error) {
	return c.post(ctx, "/audio/generate", req)
}

// FetchNonce asks the API for a fresh anti-forgery token.
func (c *APIClient) FetchNonce(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/nonce", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("nonce request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var out nonceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode nonce: %w", err)
	}
	return out.Nonce, nil
}

func (c *APIClient) post(ctx context.Context, path string, req Request) (string, error) {
	if c.nonce == "" {
		n, err := c.FetchNonce(ctx)
		if err != nil {
			return "", err
		}
		c.nonce = n
	}

	form := url.Values{
		"post_id":    {strconv.FormatInt(req.PostID, 10)},
		"ai_service": {req.Service},
		"voice":      {req.Voice},
		"nonce":      {c.nonce},
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var out audioURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.AudioURL == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "Failed to generate audio"}
	}
	return out.AudioURL, nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	return &APIError{StatusCode: resp.StatusCode}
}
