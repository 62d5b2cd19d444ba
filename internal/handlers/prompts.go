package handlers

import (
	"context"

	"github.com/thoughtjack/thoughtjack/internal/calltracker"
	"github.com/thoughtjack/thoughtjack/internal/mcp"
	"github.com/thoughtjack/thoughtjack/internal/phase"
	"github.com/thoughtjack/thoughtjack/internal/pipeline"
	"github.com/thoughtjack/thoughtjack/internal/template"
)

func (d *Dispatcher) handlePromptsGet(ctx context.Context, req *mcp.Request, state *phase.EffectiveState, scope RequestScope) (*mcp.Response, string, error) {
	var params promptsGetParams
	if err := decodeParams(req.Params, &params); err != nil || params.Name == "" {
		return mcp.NewErrorResponse(req.ID, mcp.ErrInvalidParams, "missing or invalid \"name\""), "", nil
	}

	prompt, ok := state.Prompts[params.Name]
	if !ok {
		return mcp.NewErrorResponse(req.ID, mcp.ErrInvalidParams, "prompt not found: "+params.Name), "", nil
	}

	callCount := d.Tracker.Increment(scope.CallScope, calltracker.TypePrompt, params.Name)

	tctx := &template.Context{
		Args:         params.Arguments,
		Prompt:       &template.PromptContext{Name: params.Name, CallCount: callCount},
		Phase:        &scope.Phase,
		Request:      &template.RequestContext{ID: req.ID, Method: req.Method},
		ConnectionID: scope.ConnectionID,
	}

	res, err := pipeline.Resolve(ctx, &prompt.Messages, int(callCount), tctx, tctx, d.PipelineOpts, pipeline.HandlerInvocation{
		ItemType:      "prompt",
		ItemName:      params.Name,
		Arguments:     params.Arguments,
		Phase:         scope.Phase.Name,
		PhaseIndex:    scope.Phase.Index,
		ToolCallCount: callCount,
		ConnectionID:  scope.ConnectionID,
		RequestID:     req.ID,
	})
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.ErrInternal, err.Error()), params.Name, nil
	}

	return resultResponse(req.ID, mcp.PromptGetResult{
		Description: prompt.Description,
		Messages:    promptMessages(res),
	}), params.Name, nil
}

func promptMessages(res *pipeline.Result) []mcp.PromptMessage {
	if len(res.Items) > 0 {
		out := make([]mcp.PromptMessage, len(res.Items))
		for i, it := range res.Items {
			out[i] = mcp.PromptMessage{Role: "assistant", Content: mcp.PromptMessageContent{Type: it.Type, Text: it.Text}}
		}
		return out
	}
	return []mcp.PromptMessage{{Role: "assistant", Content: mcp.PromptMessageContent{Type: "text", Text: res.Text}}}
}
