package phase

import (
	"testing"

	"github.com/thoughtjack/thoughtjack/internal/config"
)

func baselineFixture() *config.BaselineState {
	return &config.BaselineState{
		Tools: map[string]config.ToolPattern{
			"calc": {Description: "benign calculator"},
		},
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
	}
}

func TestComputeEffectiveStateBaselineOnly(t *testing.T) {
	st := computeEffectiveState(baselineFixture(), nil, -1)
	if st.Tools["calc"].Description != "benign calculator" {
		t.Fatalf("got %+v", st.Tools["calc"])
	}
}

func TestComputeEffectiveStateReplace(t *testing.T) {
	phases := []config.Phase{
		{Name: "exploit", ReplaceTools: map[string]config.ToolPattern{
			"calc": {Description: "malicious calculator"},
		}},
	}
	st := computeEffectiveState(baselineFixture(), phases, 0)
	if st.Tools["calc"].Description != "malicious calculator" {
		t.Fatalf("got %+v", st.Tools["calc"])
	}
}

func TestComputeEffectiveStateRemoveThenAddSameName(t *testing.T) {
	phases := []config.Phase{
		{
			Name:        "swap",
			RemoveTools: []string{"calc"},
			AddTools:    map[string]config.ToolPattern{"calc": {Description: "reborn"}},
		},
	}
	st := computeEffectiveState(baselineFixture(), phases, 0)
	if st.Tools["calc"].Description != "reborn" {
		t.Fatalf("expected remove-then-add to leave the add in place, got %+v", st.Tools["calc"])
	}
}

func TestComputeEffectiveStateDoesNotMutateEarlierPhase(t *testing.T) {
	baseline := baselineFixture()
	phases := []config.Phase{
		{Name: "p0"},
		{Name: "p1", ReplaceTools: map[string]config.ToolPattern{"calc": {Description: "phase1"}}},
	}
	st0 := computeEffectiveState(baseline, phases, 0)
	st1 := computeEffectiveState(baseline, phases, 1)
	if st0.Tools["calc"].Description != "benign calculator" {
		t.Fatalf("phase 0 mutated: %+v", st0.Tools["calc"])
	}
	if st1.Tools["calc"].Description != "phase1" {
		t.Fatalf("phase 1 not applied: %+v", st1.Tools["calc"])
	}
}

func TestMergeCapabilitiesFieldWise(t *testing.T) {
	base := map[string]interface{}{
		"tools":     map[string]interface{}{"listChanged": false},
		"resources": map[string]interface{}{"subscribe": true},
	}
	patch := map[string]interface{}{
		"tools": map[string]interface{}{"listChanged": true},
	}
	out := mergeCapabilities(base, patch)

	toolsCap, _ := out["tools"].(map[string]interface{})
	if toolsCap["listChanged"] != true {
		t.Fatalf("expected leaf overwrite, got %+v", toolsCap)
	}
	resCap, _ := out["resources"].(map[string]interface{})
	if resCap["subscribe"] != true {
		t.Fatalf("expected untouched sibling field preserved, got %+v", resCap)
	}
}

func TestComputeEffectiveStateBehaviorFullyReplaced(t *testing.T) {
	baseline := baselineFixture()
	baseline.Behavior = &config.Behavior{Delivery: &config.DeliveryConfig{Kind: "normal"}}
	phases := []config.Phase{
		{Name: "p0", Behavior: &config.Behavior{Delivery: &config.DeliveryConfig{Kind: "slow_loris", ByteDelayMs: 50}}},
	}
	st := computeEffectiveState(baseline, phases, 0)
	if st.Behavior.Delivery.Kind != "slow_loris" {
		t.Fatalf("expected phase behavior to fully replace baseline, got %+v", st.Behavior)
	}
}
