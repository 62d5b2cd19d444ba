// Package handlers implements the MCP method dispatch table (§4.6): one
// function per JSON-RPC method, operating against a pre-transition
// phase.EffectiveState snapshot and packaging internal/pipeline's
// resolved content into the MCP result shape each method promises.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thoughtjack/thoughtjack/internal/calltracker"
	"github.com/thoughtjack/thoughtjack/internal/config"
	"github.com/thoughtjack/thoughtjack/internal/mcp"
	"github.com/thoughtjack/thoughtjack/internal/phase"
	"github.com/thoughtjack/thoughtjack/internal/pipeline"
	"github.com/thoughtjack/thoughtjack/internal/template"
)

// Dispatcher holds the process-wide collaborators method dispatch needs
// beyond the per-request effective state and decoded request.
type Dispatcher struct {
	Tracker        *calltracker.Tracker
	PipelineOpts   pipeline.Options
	UnknownMethods mcp.UnknownMethodPolicy
	ServerVersion  string
}

// RequestScope carries the per-request identity dispatch needs to build
// call counts and template/match context: which connection this is on
// (for call-tracker scoping), the current phase name/index (for
// phase.* template variables), and the decoded request's id/method.
type RequestScope struct {
	ConnectionID string
	CallScope    string // calltracker scope: RequestScope.ConnectionID or calltracker.GlobalScope
	Phase        template.PhaseContext
}

// Outcome is what one Dispatch call produced: a response to send (nil for
// drop mode or a notification), and, when the dispatched method is one
// that can trigger an advance, the event names to evaluate triggers
// against (§4.7 step 4).
type Outcome struct {
	Response      *mcp.Response
	GenericEvent  string
	SpecificEvent string
}

// Dispatch routes req against state and produces an Outcome. It never
// itself advances the phase engine or runs side effects — those are the
// server loop's job, against this call's pre-transition state (§4.7 steps
// 5-11).
func (d *Dispatcher) Dispatch(ctx context.Context, req *mcp.Request, state *phase.EffectiveState, scope RequestScope) (*Outcome, error) {
	generic, hasSpecific := mcp.EventNameForMethod(req.Method)
	out := &Outcome{GenericEvent: generic}

	switch req.Method {
	case mcp.MethodInitialize:
		out.Response = d.handleInitialize(req, state)
	case mcp.MethodPing:
		out.Response = resultResponse(req.ID, map[string]interface{}{})
	case mcp.MethodResourcesSubscribe, mcp.MethodResourcesUnsubscribe, mcp.MethodLoggingSetLevel:
		out.Response = resultResponse(req.ID, map[string]interface{}{})
	case mcp.MethodCompletionComplete:
		out.Response = resultResponse(req.ID, map[string]interface{}{
			"completion": map[string]interface{}{"values": []string{}, "hasMore": false},
		})
	case mcp.MethodToolsList:
		out.Response = resultResponse(req.ID, map[string]interface{}{"tools": projectTools(state.Tools)})
	case mcp.MethodResourcesList:
		out.Response = resultResponse(req.ID, map[string]interface{}{"resources": projectResources(state.Resources)})
	case mcp.MethodPromptsList:
		out.Response = resultResponse(req.ID, map[string]interface{}{"prompts": projectPrompts(state.Prompts)})
	case mcp.MethodToolsCall:
		resp, specific, err := d.handleToolsCall(ctx, req, state, scope)
		if err != nil {
			return nil, err
		}
		out.Response = resp
		if hasSpecific {
			out.SpecificEvent = specific
		}
	case mcp.MethodResourcesRead:
		resp, specific, err := d.handleResourcesRead(ctx, req, state, scope)
		if err != nil {
			return nil, err
		}
		out.Response = resp
		if hasSpecific {
			out.SpecificEvent = specific
		}
	case mcp.MethodPromptsGet:
		resp, specific, err := d.handlePromptsGet(ctx, req, state, scope)
		if err != nil {
			return nil, err
		}
		out.Response = resp
		if hasSpecific {
			out.SpecificEvent = specific
		}
	default:
		out.Response = d.handleUnknown(req)
	}

	if out.SpecificEvent != "" {
		out.SpecificEvent = generic + ":" + out.SpecificEvent
	}
	return out, nil
}

func (d *Dispatcher) handleInitialize(req *mcp.Request, state *phase.EffectiveState) *mcp.Response {
	var params mcp.InitializeParams
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params) // malformed params fall through to defaults, not an error (§4.6 lists only name/uri as required)
	}
	version := params.ProtocolVersion
	if version == "" {
		version = mcp.ProtocolVersion
	}
	caps := state.Capabilities
	if caps == nil {
		caps = map[string]interface{}{}
	}
	return resultResponse(req.ID, mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    caps,
		ServerInfo:      mcp.ServerInfo{Name: mcp.ServerName, Version: d.ServerVersion},
	})
}

// handleUnknown applies the configured unknown_methods policy (§4.6).
func (d *Dispatcher) handleUnknown(req *mcp.Request) *mcp.Response {
	switch d.UnknownMethods {
	case mcp.UnknownMethodIgnore:
		return &mcp.Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage("null")}
	case mcp.UnknownMethodDrop:
		return nil
	default:
		return mcp.NewErrorResponse(req.ID, mcp.ErrMethodNotFound, "method not found: "+req.Method)
	}
}

func projectTools(tools map[string]config.ToolPattern) []mcp.Tool {
	out := make([]mcp.Tool, 0, len(tools))
	for name, t := range tools {
		out = append(out, mcp.Tool{Name: name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

func projectResources(resources map[string]config.ResourcePattern) []mcp.Resource {
	out := make([]mcp.Resource, 0, len(resources))
	for uri, r := range resources {
		out = append(out, mcp.Resource{URI: uri, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}
	return out
}

func projectPrompts(prompts map[string]config.PromptPattern) []mcp.Prompt {
	out := make([]mcp.Prompt, 0, len(prompts))
	for name, p := range prompts {
		args := make([]mcp.PromptArgument, 0, len(p.Arguments))
		for _, a := range p.Arguments {
			args = append(args, mcp.PromptArgument(a))
		}
		out = append(out, mcp.Prompt{Name: name, Description: p.Description, Arguments: args})
	}
	return out
}

func resultResponse(id interface{}, result interface{}) *mcp.Response {
	resp, err := mcp.NewResultResponse(id, result)
	if err != nil {
		return mcp.NewErrorResponse(id, mcp.ErrInternal, fmt.Sprintf("failed to encode result: %v", err))
	}
	return resp
}
