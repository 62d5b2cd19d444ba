package generators

import (
	"fmt"
	"strings"
)

// AnsiEscapeParams configures the ansi_escape generator (§4.2).
type AnsiEscapeParams struct {
	Sequences []string
	Count     int
	Payload   string
	Seed      uint64
}

func parseAnsiParams(p map[string]interface{}) AnsiEscapeParams {
	seqs := paramStringSlice(p, "sequences")
	if len(seqs) == 0 {
		seqs = []string{"cursor_move", "color", "title", "hyperlink", "clear"}
	}
	return AnsiEscapeParams{
		Sequences: seqs,
		Count:     paramInt(p, "count", len(seqs)),
		Payload:   paramString(p, "payload", ""),
		Seed:      paramUint64(p, "seed", 0),
	}
}

// AnsiEscape cycles through a list of ANSI escape sequence kinds (cursor
// move, color, title, hyperlink, clear) to probe terminal-emulating
// clients for escape-sequence injection (§4.2).
type AnsiEscape struct {
	params AnsiEscapeParams
}

func NewAnsiEscape(params AnsiEscapeParams, limits Limits) (*AnsiEscape, error) {
	if params.Count > limits.MaxBatchSize {
		return nil, &LimitExceededError{Generator: "ansi_escape", Field: "count", Value: params.Count, Limit: limits.MaxBatchSize}
	}
	return &AnsiEscape{params: params}, nil
}

func (a *AnsiEscape) Name() string       { return "ansi_escape" }
func (a *AnsiEscape) ProducesJSON() bool { return false }

func (a *AnsiEscape) EstimatedSize() int {
	return len(a.build())
}

func (a *AnsiEscape) Generate() (Payload, error) {
	return bufferedOrStreamed([]byte(a.build())), nil
}

func (a *AnsiEscape) build() string {
	if len(a.params.Sequences) == 0 {
		return ""
	}
	r := newRand(a.params.Seed)
	var b strings.Builder
	for i := 0; i < a.params.Count; i++ {
		kind := a.params.Sequences[i%len(a.params.Sequences)]
		b.WriteString(ansiSequence(kind, a.params.Payload, r))
	}
	return b.String()
}

// ansiSequence renders one escape sequence of the given kind.
// cursor_move and color carry pseudo-random parameters so repeated
// sequences of the same kind aren't identical; title and hyperlink embed
// the configured payload verbatim.
func ansiSequence(kind, payload string, r interface{ IntN(int) int }) string {
	switch kind {
	case "cursor_move":
		row := 1 + r.IntN(24)
		col := 1 + r.IntN(80)
		return fmt.Sprintf("\x1b[%d;%dH", row, col)
	case "color":
		code := 30 + r.IntN(8)
		return fmt.Sprintf("\x1b[%dm", code)
	case "title":
		return fmt.Sprintf("\x1b]0;%s\x07", payload)
	case "hyperlink":
		return fmt.Sprintf("\x1b]8;;%s\x07%s\x1b]8;;\x07", payload, payload)
	case "clear":
		return "\x1b[2J\x1b[H"
	default:
		return ""
	}
}
