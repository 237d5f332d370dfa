package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// A2A protocol subset used to hand a prompt to a remote agent.

const (
	jsonRPCVersion    = "2.0"
	methodSendMessage = "message/send"
	agentCardPath     = "/.well-known/agent-card.json"
)

// TaskState is the lifecycle state of an A2A task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateRejected      TaskState = "rejected"
	TaskStateInputRequired TaskState = "input-required"
)

// Part carries text content of a message or artifact.
type Part struct {
	Text      string `json:"text,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// Message is one turn sent to or received from an agent.
type Message struct {
	MessageID string `json:"messageId"`
	ContextID string `json:"contextId,omitempty"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
}

// Artifact is an output the agent attached to a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name"`
	Parts      []Part `json:"parts"`
}

// TaskStatus is the state of a task and the agent's latest note.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is what message/send returns.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// AgentCard is the subset of the agent manifest used for probing.
type AgentCard struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

type sendMessageConfig struct {
	Blocking bool `json:"blocking"`
}

type sendMessageParams struct {
	Message       Message            `json:"message"`
	Configuration *sendMessageConfig `json:"configuration,omitempty"`
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object returned by an agent.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("gateway: a2a: rpc error %d: %s", e.Code, e.Message)
}

// TaskError reports a task that ended without a usable answer.
type TaskError struct {
	TaskID string
	State  TaskState
	Reason string
}

func (e *TaskError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("gateway: a2a: task %s %s: %s", e.TaskID, e.State, e.Reason)
	}
	return fmt.Sprintf("gateway: a2a: task %s %s", e.TaskID, e.State)
}

// A2A sends prompts to an agent speaking the A2A JSON-RPC protocol.
type A2A struct {
	base
	endpoint  string
	requestID atomic.Int64
}

var (
	_ Gateway = (*A2A)(nil)
	_ Prober  = (*A2A)(nil)
)

// NewA2A creates a client for the agent at endpoint.
func NewA2A(endpoint string, opts ...Option) *A2A {
	return &A2A{
		base:     newBase("a2a", opts),
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// Send posts prompt as a blocking message/send and returns the text of the
// completed task's artifacts.
func (c *A2A) Send(ctx context.Context, prompt string) (reply string, err error) {
	start := time.Now()
	defer func() { c.observe(start, len(prompt), len(reply), err) }()

	params := sendMessageParams{
		Message: Message{
			MessageID: uuid.NewString(),
			Role:      "user",
			Parts:     []Part{{Text: prompt, MediaType: "text/plain"}},
		},
		Configuration: &sendMessageConfig{Blocking: true},
	}

	var task Task
	if err := c.call(ctx, methodSendMessage, params, &task); err != nil {
		return "", err
	}

	if task.Status.State != TaskStateCompleted {
		reason := ""
		if task.Status.Message != nil {
			reason = joinText(task.Status.Message.Parts)
		}
		return "", &TaskError{TaskID: task.ID, State: task.Status.State, Reason: reason}
	}

	var parts []Part
	for _, a := range task.Artifacts {
		parts = append(parts, a.Parts...)
	}
	text := joinText(parts)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Ping fetches the agent card.
func (c *A2A) Ping(ctx context.Context) error {
	_, err := c.Discover(ctx)
	return err
}

// Discover fetches and decodes the agent card.
func (c *A2A) Discover(ctx context.Context) (*AgentCard, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint+agentCardPath, nil)
	if err != nil {
		return nil, err
	}
	var card AgentCard
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("gateway: a2a: decode agent card: %w", err)
	}
	return &card, nil
}

// call performs one JSON-RPC 2.0 round trip.
func (c *A2A) call(ctx context.Context, method string, params, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("gateway: a2a: marshal params: %w", err)
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  raw,
	})
	if err != nil {
		return fmt.Errorf("gateway: a2a: marshal request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return err
	}

	var resp rpcResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("gateway: a2a: decode response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("gateway: a2a: decode %s result: %w", method, err)
		}
	}
	return nil
}

func joinText(parts []Part) string {
	var texts []string
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}
