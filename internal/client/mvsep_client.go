package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/voiceforge/api/internal/config"
)

// SeparationClient defines the interface for the upstream stem-separation API.
// Dispatch creates one asynchronous upstream job and returns its handle; Poll
// checks a handle once. The client never retries; the orchestrator absorbs
// provider latency through repeated Poll calls.
type SeparationClient interface {
	Dispatch(ctx context.Context, req *SeparationRequest) (string, error)
	Poll(ctx context.Context, hash string) (*SeparationPoll, error)
}

// SeparationState is the normalized upstream job state.
type SeparationState string

const (
	// SeparationWaiting covers the provider's queued/processing/distributing/merging phases.
	SeparationWaiting SeparationState = "waiting"
	SeparationDone    SeparationState = "done"
	SeparationFailed  SeparationState = "failed"
)

// SeparationRequest represents one processing request for the upstream API
type SeparationRequest struct {
	AudioURL string
	Mode     int
	Options  map[string]string
}

// OutputFile is one result file returned by the provider
type OutputFile struct {
	URL      string `json:"url"`
	Download string `json:"download"`
	Label    string `json:"label"`
}

// SeparationPoll is the normalized result of polling one upstream job
type SeparationPoll struct {
	State SeparationState
	Files []OutputFile
}

// DispatchError indicates the upstream API rejected a request or returned no
// job hash. Terminal for the job that issued it.
type DispatchError struct {
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("dispatch failed: %s", e.Reason)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// PollError indicates a transport or parse failure while checking status.
// Transient: the caller leaves job state untouched and polls again later.
type PollError struct {
	Hash string
	Err  error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll failed for %s: %v", e.Hash, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// MVSEPClient implements SeparationClient for the MVSEP HTTP API
type MVSEPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewMVSEPClient creates a new MVSEP API client
func NewMVSEPClient(cfg *config.MVSEPConfig) *MVSEPClient {
	return &MVSEPClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *MVSEPClient) IsConfigured() bool {
	return c.apiKey != ""
}

type createResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Hash string `json:"hash"`
		Link string `json:"link"`
	} `json:"data"`
}

type resultResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Data    struct {
		Message string       `json:"message"`
		Files   []OutputFile `json:"files"`
	} `json:"data"`
}

// Dispatch submits one separation request and returns the upstream job hash
func (c *MVSEPClient) Dispatch(ctx context.Context, req *SeparationRequest) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("api_token", c.apiKey)
	_ = mw.WriteField("url", req.AudioURL)
	_ = mw.WriteField("sep_type", strconv.Itoa(req.Mode))
	for k, v := range req.Options {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		return "", &DispatchError{Reason: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/separation/create", &body)
	if err != nil {
		return "", &DispatchError{Reason: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	log.Printf("[MVSEP API] → POST /api/separation/create sep_type=%d", req.Mode)

	respBody, err := c.do(httpReq)
	if err != nil {
		return "", &DispatchError{Reason: "send request", Err: err}
	}

	var result createResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &DispatchError{Reason: "parse response", Err: err}
	}
	if !result.Success || result.Data.Hash == "" {
		return "", &DispatchError{Reason: fmt.Sprintf("upstream rejected request: %s", string(respBody))}
	}

	log.Printf("[MVSEP API] ← created job %s", result.Data.Hash)
	return result.Data.Hash, nil
}

// Poll checks one upstream job and normalizes the provider status
func (c *MVSEPClient) Poll(ctx context.Context, hash string) (*SeparationPoll, error) {
	url := fmt.Sprintf("%s/api/separation/get?hash=%s", c.baseURL, hash)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &PollError{Hash: hash, Err: err}
	}

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, &PollError{Hash: hash, Err: err}
	}

	var result resultResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &PollError{Hash: hash, Err: err}
	}

	poll := &SeparationPoll{State: normalizeState(result.Status)}
	if poll.State == SeparationDone {
		poll.Files = normalizeFiles(result.Data.Files)
	}

	log.Printf("[MVSEP API] ← job %s status=%s (%s)", hash, result.Status, poll.State)
	return poll, nil
}

// normalizeState maps the provider's status vocabulary onto the three states
// the orchestrator cares about.
func normalizeState(status string) SeparationState {
	switch status {
	case "done":
		return SeparationDone
	case "failed", "not_found":
		return SeparationFailed
	default:
		// waiting, processing, distributing, merging: still in flight
		return SeparationWaiting
	}
}

// normalizeFiles fills in a label for files the provider returned without one
func normalizeFiles(files []OutputFile) []OutputFile {
	out := make([]OutputFile, len(files))
	for i, f := range files {
		if f.Label == "" {
			f.Label = f.Download
		}
		out[i] = f
	}
	return out
}

// do executes an HTTP request and returns the raw response body
func (c *MVSEPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[MVSEP API] ✗ %s %s — request failed: %v", req.Method, req.URL.Path, err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[MVSEP API] ✗ %d %s %s — %s", resp.StatusCode, req.Method, req.URL.Path, string(respBody))
		return nil, fmt.Errorf("mvsep API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
