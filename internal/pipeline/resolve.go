package pipeline

import (
	"context"
	"fmt"

	"github.com/thoughtjack/thoughtjack/internal/config"
	"github.com/thoughtjack/thoughtjack/internal/generators"
	"github.com/thoughtjack/thoughtjack/internal/match"
	"github.com/thoughtjack/thoughtjack/internal/template"
)

// Options carries the knobs Resolve needs beyond the response config
// itself.
type Options struct {
	AllowExternalHandlers bool
	Limits                generators.Limits
	FileRoot              string
}

// Result is one resolved response: either plain text (literal, generator,
// or file content; only literal content is template-interpolated) or a
// list of content items from an external handler (handler output is never
// template-interpolated — §4.3).
type Result struct {
	Text    string
	Items   []ContentItem
	IsError bool
	Warning string
}

// Resolve implements §4.3's full dynamic-pipeline evaluation: match
// branch selection (first-match-wins, falling through to the top-level
// response when nothing matches), sequence resolution by call count, and
// finally static/generator/file content, with template interpolation
// applied to literal string content only.
func Resolve(ctx context.Context, rc *config.ResponseConfig, callCount int, tctx *template.Context, resolver match.Resolver, opts Options, inv HandlerInvocation) (*Result, error) {
	if len(rc.Match) > 0 {
		if idx := match.Index(rc.Match, resolver); idx >= 0 {
			b := rc.Match[idx]
			return resolveProduced(ctx, b.Handler, b.Sequence, b.Content, b.IsError, rc.OnExhausted, callCount, tctx, opts, inv)
		}
	}
	return resolveProduced(ctx, rc.Handler, rc.Sequence, rc.Content, rc.IsError, rc.OnExhausted, callCount, tctx, opts, inv)
}

func resolveProduced(ctx context.Context, handler *config.HandlerConfig, sequence []config.SequenceEntry, content interface{}, isError bool, onExhausted string, callCount int, tctx *template.Context, opts Options, inv HandlerInvocation) (*Result, error) {
	if handler != nil {
		return resolveHandler(ctx, handler, tctx, opts, inv)
	}
	if len(sequence) > 0 {
		idx, err := ResolveSequenceIndex(len(sequence), callCount, onExhausted)
		if err != nil {
			return nil, err
		}
		entry := sequence[idx]
		if entry.Handler != nil {
			return resolveHandler(ctx, entry.Handler, tctx, opts, inv)
		}
		text, _, err := resolveContentValue(entry.Content, tctx, opts.Limits, opts.FileRoot)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text, IsError: entry.IsError}, nil
	}

	text, _, err := resolveContentValue(content, tctx, opts.Limits, opts.FileRoot)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, IsError: isError}, nil
}

func resolveHandler(ctx context.Context, h *config.HandlerConfig, tctx *template.Context, opts Options, inv HandlerInvocation) (*Result, error) {
	hr, err := InvokeHandler(ctx, h, inv, tctx, opts.AllowExternalHandlers)
	if err != nil {
		return nil, err
	}
	res := &Result{Warning: hr.Warning}
	switch {
	case hr.IsError:
		res.IsError = true
		res.Items = []ContentItem{{Type: "text", Text: fmt.Sprint(hr.Error)}}
	case hr.HasText:
		res.Items = []ContentItem{{Type: "text", Text: hr.Text}}
	default:
		res.Items = hr.Content
	}
	return res, nil
}
