package phase

import "github.com/thoughtjack/thoughtjack/internal/config"

// EffectiveState is the server's capability set at a particular phase
// index: the baseline with every phase diff up to and including that index
// folded in (§3 "EffectiveState(phase_index)").
type EffectiveState struct {
	Tools        map[string]config.ToolPattern
	Resources    map[string]config.ResourcePattern
	Prompts      map[string]config.PromptPattern
	Capabilities map[string]interface{}
	Behavior     *config.Behavior
}

// computeEffectiveState folds baseline and phases[0:upToIndex+1] in order.
// Each phase diff applies in the fixed sequence remove -> replace -> add
// (§3): removing a name not present is a no-op, replacing defines-or-
// overwrites, adding after a remove reintroduces the name fresh. This
// matters when a single phase both removes and re-adds the same name.
func computeEffectiveState(baseline *config.BaselineState, phases []config.Phase, upToIndex int) *EffectiveState {
	b := baseline.Clone()
	st := &EffectiveState{
		Tools:        b.Tools,
		Resources:    b.Resources,
		Prompts:      b.Prompts,
		Capabilities: b.Capabilities,
		Behavior:     b.Behavior,
	}
	if st.Capabilities == nil {
		st.Capabilities = map[string]interface{}{}
	}

	if upToIndex < 0 {
		return st
	}
	last := upToIndex
	if last >= len(phases) {
		last = len(phases) - 1
	}

	for i := 0; i <= last; i++ {
		applyPhase(st, &phases[i])
	}
	return st
}

func applyPhase(st *EffectiveState, p *config.Phase) {
	for _, name := range p.RemoveTools {
		delete(st.Tools, name)
	}
	for name, tp := range p.ReplaceTools {
		st.Tools[name] = tp
	}
	for name, tp := range p.AddTools {
		st.Tools[name] = tp
	}

	for _, name := range p.RemoveResources {
		delete(st.Resources, name)
	}
	for name, rp := range p.ReplaceResources {
		st.Resources[name] = rp
	}
	for name, rp := range p.AddResources {
		st.Resources[name] = rp
	}

	for _, name := range p.RemovePrompts {
		delete(st.Prompts, name)
	}
	for name, pp := range p.ReplacePrompts {
		st.Prompts[name] = pp
	}
	for name, pp := range p.AddPrompts {
		st.Prompts[name] = pp
	}

	if p.ReplaceCapabilities != nil {
		st.Capabilities = mergeCapabilities(st.Capabilities, p.ReplaceCapabilities)
	}

	if p.Behavior != nil {
		st.Behavior = p.Behavior
	}
}

// mergeCapabilities merges patch into base field-wise: nested maps merge
// recursively, and any other value type at a leaf fully overwrites the
// base's value at that leaf (§3: "capabilities merge field-wise, phase wins
// at the leaf, not a shallow top-level overwrite").
func mergeCapabilities(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		if bv, ok := out[k]; ok {
			bm, bIsMap := bv.(map[string]interface{})
			pm, pIsMap := pv.(map[string]interface{})
			if bIsMap && pIsMap {
				out[k] = mergeCapabilities(bm, pm)
				continue
			}
		}
		out[k] = pv
	}
	return out
}
