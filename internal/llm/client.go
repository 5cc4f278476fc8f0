package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/forgescene/scene-crew/internal/domain"
)

// Message is one turn of conversation history passed to the provider.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ProviderError reports a failed completion call: transport error, timeout,
// or a non-2xx provider response.
type ProviderError struct {
	Agent      domain.AgentName
	StatusCode int // 0 for transport/timeout errors
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion for %s failed: provider returned %d: %v", e.Agent, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion for %s failed: %v", e.Agent, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Completer is the narrow contract the rest of the core depends on.
type Completer interface {
	Complete(ctx context.Context, agent domain.AgentIdentity, contextText string, history []Message) (string, error)
}

// Client sends (system prompt, message history) pairs to a text-completion
// provider. It carries no orchestration logic: the returned text is opaque
// prose that may or may not contain code.
type Client struct {
	baseURL     string
	apiKey      string
	fallbackKey string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient creates a completion client. fallbackKey may be empty; when set,
// a call rejected on its credential is retried exactly once with it before
// surfacing the error.
func NewClient(baseURL, apiKey, fallbackKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		fallbackKey: fallbackKey,
		timeout:     timeout,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

type completionResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete builds the system prompt from the agent's role fragment plus the
// supplied context text and returns the provider's generated text.
//
// The only automatic retry at this layer is the fallback-credential retry:
// if the provider rejects the primary key, the call is repeated once with
// the shared fallback key. Timeouts, transport errors, and server-side
// failures are never retried here; a second key would fail the same way.
func (c *Client) Complete(ctx context.Context, agent domain.AgentIdentity, contextText string, history []Message) (string, error) {
	system := agent.PromptRole
	if contextText != "" {
		system += "\n\n" + contextText
	}

	text, err := c.call(ctx, agent, system, history, c.apiKey)
	if err != nil && c.fallbackKey != "" && c.fallbackKey != c.apiKey && credentialRejected(err) {
		text, err = c.call(ctx, agent, system, history, c.fallbackKey)
	}
	return text, err
}

// credentialRejected reports whether the provider refused the key itself.
func credentialRejected(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden
}

func (c *Client) call(ctx context.Context, agent domain.AgentIdentity, system string, history []Message, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{
		Model:     agent.Model,
		System:    system,
		MaxTokens: agent.MaxTokens,
		Messages:  history,
	})
	if err != nil {
		return "", &ProviderError{Agent: agent.Name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Agent: agent.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Agent: agent.Name, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Agent: agent.Name, Err: err}
	}

	var parsed completionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &ProviderError{Agent: agent.Name, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{
			Agent:      agent.Name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", parsed.Error.Message),
		}
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", &ProviderError{Agent: agent.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("empty completion")}
	}
	return text, nil
}
