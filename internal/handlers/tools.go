package handlers

import (
	"context"
	"errors"

	"github.com/thoughtjack/thoughtjack/internal/calltracker"
	"github.com/thoughtjack/thoughtjack/internal/mcp"
	"github.com/thoughtjack/thoughtjack/internal/phase"
	"github.com/thoughtjack/thoughtjack/internal/pipeline"
	"github.com/thoughtjack/thoughtjack/internal/template"
)

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *mcp.Request, state *phase.EffectiveState, scope RequestScope) (*mcp.Response, string, error) {
	var params toolsCallParams
	if err := decodeParams(req.Params, &params); err != nil || params.Name == "" {
		return mcp.NewErrorResponse(req.ID, mcp.ErrInvalidParams, "missing or invalid \"name\""), "", nil
	}

	tool, ok := state.Tools[params.Name]
	if !ok {
		return mcp.NewErrorResponse(req.ID, mcp.ErrInvalidParams, "tool not found: "+params.Name), "", nil
	}

	callCount := d.Tracker.Increment(scope.CallScope, calltracker.TypeTool, params.Name)

	tctx := &template.Context{
		Args:         params.Arguments,
		Tool:         &template.ToolContext{Name: params.Name, CallCount: callCount},
		Phase:        &scope.Phase,
		Request:      &template.RequestContext{ID: req.ID, Method: req.Method},
		ConnectionID: scope.ConnectionID,
	}

	res, err := pipeline.Resolve(ctx, &tool.Response, int(callCount), tctx, tctx, d.PipelineOpts, pipeline.HandlerInvocation{
		ItemType:      "tool",
		ItemName:      params.Name,
		Arguments:     params.Arguments,
		Phase:         scope.Phase.Name,
		PhaseIndex:    scope.Phase.Index,
		ToolCallCount: callCount,
		ConnectionID:  scope.ConnectionID,
		RequestID:     req.ID,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrHandlersDisabled) {
			return resultResponse(req.ID, mcp.ToolCallResult{
				Content: []mcp.ContentItem{{Type: "text", Text: err.Error()}},
				IsError: true,
			}), params.Name, nil
		}
		return mcp.NewErrorResponse(req.ID, mcp.ErrInternal, err.Error()), params.Name, nil
	}

	return resultResponse(req.ID, mcp.ToolCallResult{Content: toolContent(res), IsError: res.IsError}), params.Name, nil
}

func toolContent(res *pipeline.Result) []mcp.ContentItem {
	if len(res.Items) > 0 {
		out := make([]mcp.ContentItem, len(res.Items))
		for i, it := range res.Items {
			out[i] = mcp.ContentItem{Type: it.Type, Text: it.Text}
		}
		return out
	}
	return []mcp.ContentItem{{Type: "text", Text: res.Text}}
}
