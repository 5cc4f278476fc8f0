package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/forgescene/scene-crew/internal/domain"
)

// Executor is the contract the orchestrator and debug loop depend on.
type Executor interface {
	ExecuteAndWait(ctx context.Context, projectID, code string, agent domain.AgentName) (domain.ExecutionResult, error)
}

// Bridge submits code to the editor process for remote execution and polls
// until the request reaches a terminal state. It is a pure request/poll/return
// primitive: it never retries on semantic execution failure and does not write
// the audit log; both are the caller's responsibility.
type Bridge struct {
	baseURL      string
	pollInterval time.Duration
	deadline     time.Duration
	httpClient   *http.Client
}

// NewBridge creates a bridge against the engine's remote-execution endpoint.
func NewBridge(baseURL string, pollInterval, deadline time.Duration) *Bridge {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if deadline <= 0 {
		deadline = 120 * time.Second
	}
	return &Bridge{
		baseURL:      baseURL,
		pollInterval: pollInterval,
		deadline:     deadline,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

type submitRequest struct {
	ProjectID string `json:"project_id"`
	Agent     string `json:"agent"`
	Code      string `json:"code"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status string `json:"status"` // pending | executing | success | error
	Output string `json:"output"`
	Error  string `json:"error"`
}

// ExecuteAndWait submits code and polls its status until success, error, or
// the overall deadline, at which point the result is synthesized as a timeout.
// A submission failure is immediately terminal; no polling occurs.
func (b *Bridge) ExecuteAndWait(ctx context.Context, projectID, code string, agent domain.AgentName) (domain.ExecutionResult, error) {
	requestID, err := b.submit(ctx, projectID, code, agent)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("submitting execution: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.deadline)
	defer cancel()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Deadline elapsed (or caller cancelled): synthesize a timeout result.
			return domain.ExecutionResult{
				RequestID: requestID,
				Kind:      domain.ExecTimeout,
				Err:       fmt.Sprintf("execution %s did not finish within %s", requestID, b.deadline),
			}, nil
		case <-ticker.C:
			status, err := b.poll(ctx, requestID)
			if err != nil {
				// Transient poll failure; keep polling until the deadline.
				continue
			}
			switch status.Status {
			case "success":
				return domain.ExecutionResult{RequestID: requestID, Kind: domain.ExecSuccess, Output: status.Output}, nil
			case "error":
				return domain.ExecutionResult{RequestID: requestID, Kind: domain.ExecError, Err: status.Error}, nil
			}
			// pending or executing: keep polling
		}
	}
}

func (b *Bridge) submit(ctx context.Context, projectID, code string, agent domain.AgentName) (string, error) {
	body, err := json.Marshal(submitRequest{ProjectID: projectID, Agent: string(agent), Code: code})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("engine returned %d: %s", resp.StatusCode, data)
	}

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.RequestID == "" {
		return "", fmt.Errorf("engine returned no request id")
	}
	return parsed.RequestID, nil
}

func (b *Bridge) poll(ctx context.Context, requestID string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/status/"+requestID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status poll returned %d", resp.StatusCode)
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}
