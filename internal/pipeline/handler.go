package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/thoughtjack/thoughtjack/internal/config"
	"github.com/thoughtjack/thoughtjack/internal/template"
)

const (
	defaultHandlerTimeout = 30 * time.Second
	maxHandlerResponse    = 10 * 1024 * 1024
)

// ErrHandlersDisabled is returned when a handler is configured but
// allow_external_handlers is false (§8: "allow_external_handlers = false
// + handler configured ⇒ NotEnabled propagated as tool error").
var ErrHandlersDisabled = fmt.Errorf("pipeline: external handlers are not enabled")

// HandlerInvocation is the context an external handler call needs to
// build its request body (§4.3).
type HandlerInvocation struct {
	ItemType      string // "tool" | "resource" | "prompt"
	ItemName      string
	Arguments     map[string]interface{}
	Phase         string
	PhaseIndex    int
	ToolCallCount uint64
	ConnectionID  string
	RequestID     interface{}
}

// HandlerResult is the discriminated response shape external handlers may
// return (§4.3): {content: [...]}, {text: string}, or {error: value}.
type HandlerResult struct {
	Content []ContentItem
	Text    string
	HasText bool
	Error   interface{}
	IsError bool
	// Warning carries a non-fatal note (e.g. subprocess stderr on success)
	// for the caller to log; it never changes the result's success.
	Warning string
}

// ContentItem mirrors mcp.ContentItem without importing the mcp package,
// avoiding a dependency cycle (mcp stays a pure protocol-types package).
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildHandlerBody(inv HandlerInvocation) ([]byte, error) {
	body := map[string]interface{}{
		inv.ItemType:  inv.ItemName,
		"arguments":   inv.Arguments,
		"context": map[string]interface{}{
			"phase":           inv.Phase,
			"phase_index":     inv.PhaseIndex,
			"tool_call_count": inv.ToolCallCount,
			"connection_id":   inv.ConnectionID,
		},
	}
	if inv.RequestID != nil {
		body["context"].(map[string]interface{})["request_id"] = inv.RequestID
	}
	return json.Marshal(body)
}

func parseHandlerTimeout(raw string) time.Duration {
	if raw == "" {
		return defaultHandlerTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultHandlerTimeout
	}
	return d
}

// InvokeHandler dispatches to HTTP or subprocess per h.IsHTTP, subject to
// the allowExternal gate, a response size cap, and (HTTP) no-redirect SSRF
// containment (§4.3).
func InvokeHandler(ctx context.Context, h *config.HandlerConfig, inv HandlerInvocation, tctx *template.Context, allowExternal bool) (*HandlerResult, error) {
	if !allowExternal {
		return nil, ErrHandlersDisabled
	}
	body, err := buildHandlerBody(inv)
	if err != nil {
		return nil, err
	}

	var raw []byte
	var warning string
	if h.IsHTTP() {
		raw, err = invokeHTTP(ctx, h, body, tctx)
	} else {
		raw, warning, err = invokeCommand(ctx, h, body, tctx)
	}
	if err != nil {
		return nil, err
	}

	res, err := decodeHandlerResponse(raw)
	if err != nil {
		return nil, err
	}
	res.Warning = warning
	return res, nil
}

func invokeHTTP(ctx context.Context, h *config.HandlerConfig, body []byte, tctx *template.Context) ([]byte, error) {
	timeout := parseHandlerTimeout(h.Timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.Headers {
		req.Header.Set(k, template.Interpolate(v, tctx))
	}

	client := &http.Client{
		Timeout: timeout,
		// SSRF containment: never follow a redirect to a handler-controlled
		// location (§4.3: "no redirects").
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxHandlerResponse+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxHandlerResponse {
		return nil, fmt.Errorf("pipeline: handler response exceeds %d bytes", maxHandlerResponse)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pipeline: handler returned HTTP %d", resp.StatusCode)
	}
	return data, nil
}

func invokeCommand(ctx context.Context, h *config.HandlerConfig, body []byte, tctx *template.Context) ([]byte, string, error) {
	if len(h.Command) == 0 {
		return nil, "", fmt.Errorf("pipeline: handler has neither url nor command")
	}
	timeout := parseHandlerTimeout(h.Timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.Command[0], h.Command[1:]...)
	cmd.Dir = h.Dir
	cmd.Stdin = bytes.NewReader(body)

	env := os.Environ()
	for k, v := range h.Env {
		env = append(env, k+"="+template.Interpolate(v, tctx))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: handler command failed: %w: %s", err, stderr.String())
	}
	if stdout.Len() > maxHandlerResponse {
		return nil, "", fmt.Errorf("pipeline: handler response exceeds %d bytes", maxHandlerResponse)
	}

	var warning string
	if stderr.Len() > 0 {
		warning = stderr.String()
	}
	return stdout.Bytes(), warning, nil
}

func decodeHandlerResponse(raw []byte) (*HandlerResult, error) {
	var shape struct {
		Content []ContentItem `json:"content"`
		Text    *string       `json:"text"`
		Error   interface{}   `json:"error"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("pipeline: handler returned invalid JSON: %w", err)
	}
	res := &HandlerResult{}
	switch {
	case shape.Content != nil:
		res.Content = shape.Content
	case shape.Text != nil:
		res.Text = *shape.Text
		res.HasText = true
	case shape.Error != nil:
		res.Error = shape.Error
		res.IsError = true
	default:
		return nil, fmt.Errorf("pipeline: handler response matched none of content/text/error")
	}
	return res, nil
}
