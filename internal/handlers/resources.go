package handlers

import (
	"context"

	"github.com/thoughtjack/thoughtjack/internal/calltracker"
	"github.com/thoughtjack/thoughtjack/internal/mcp"
	"github.com/thoughtjack/thoughtjack/internal/phase"
	"github.com/thoughtjack/thoughtjack/internal/pipeline"
	"github.com/thoughtjack/thoughtjack/internal/template"
)

func (d *Dispatcher) handleResourcesRead(ctx context.Context, req *mcp.Request, state *phase.EffectiveState, scope RequestScope) (*mcp.Response, string, error) {
	var params resourcesReadParams
	if err := decodeParams(req.Params, &params); err != nil || params.URI == "" {
		return mcp.NewErrorResponse(req.ID, mcp.ErrInvalidParams, "missing or invalid \"uri\""), "", nil
	}

	resource, ok := state.Resources[params.URI]
	if !ok {
		return mcp.NewErrorResponse(req.ID, mcp.ErrInvalidParams, "resource not found: "+params.URI), "", nil
	}

	callCount := d.Tracker.Increment(scope.CallScope, calltracker.TypeResource, params.URI)

	tctx := &template.Context{
		Resource:     &template.ResourceContext{URI: params.URI, Name: resource.Name, MimeType: resource.MimeType, CallCount: callCount},
		Phase:        &scope.Phase,
		Request:      &template.RequestContext{ID: req.ID, Method: req.Method},
		ConnectionID: scope.ConnectionID,
	}

	res, err := pipeline.Resolve(ctx, &resource.Content, int(callCount), tctx, tctx, d.PipelineOpts, pipeline.HandlerInvocation{
		ItemType:      "resource",
		ItemName:      params.URI,
		Phase:         scope.Phase.Name,
		PhaseIndex:    scope.Phase.Index,
		ToolCallCount: callCount,
		ConnectionID:  scope.ConnectionID,
		RequestID:     req.ID,
	})
	if err != nil {
		// resources/read has no isError-shaped result to fall back to, unlike
		// tools/call, so even a disabled-handler error surfaces as -32603.
		return mcp.NewErrorResponse(req.ID, mcp.ErrInternal, err.Error()), params.URI, nil
	}

	return resultResponse(req.ID, mcp.ResourceReadResult{
		Contents: []mcp.ResourceContent{{URI: params.URI, Text: resourceText(res), MimeType: resource.MimeType}},
	}), params.URI, nil
}

func resourceText(res *pipeline.Result) string {
	if len(res.Items) > 0 {
		return res.Items[0].Text
	}
	return res.Text
}
