package phase

import (
	"testing"
	"time"

	"github.com/thoughtjack/thoughtjack/internal/config"
)

func TestEvaluateEventCountTrigger(t *testing.T) {
	trig := &config.Trigger{On: "tools/call", Count: 3}
	ctx := Context{EventCount: func(name string) uint64 {
		if name == "tools/call" {
			return 2
		}
		return 0
	}}
	if Evaluate(trig, ctx) {
		t.Fatal("expected no fire below count")
	}
	ctx.EventCount = func(string) uint64 { return 3 }
	if !Evaluate(trig, ctx) {
		t.Fatal("expected fire at count")
	}
}

func TestEvaluateTimeTrigger(t *testing.T) {
	trig := &config.Trigger{After: "500ms"}
	entered := time.Now()
	ctx := Context{PhaseEnteredAt: entered, Now: entered.Add(100 * time.Millisecond)}
	if Evaluate(trig, ctx) {
		t.Fatal("expected no fire before elapsed")
	}
	ctx.Now = entered.Add(600 * time.Millisecond)
	if !Evaluate(trig, ctx) {
		t.Fatal("expected fire after elapsed")
	}
}

func TestEvaluateContentTrigger(t *testing.T) {
	cond := &config.Condition{Pattern: "*secret*"}
	trig := &config.Trigger{When: cond, WhenField: "args.query"}
	called := false
	ctx := Context{MatchCondition: func(field string, c *config.Condition) bool {
		called = true
		if field != "args.query" || c != cond {
			t.Fatalf("unexpected args: %s %+v", field, c)
		}
		return true
	}}
	if !Evaluate(trig, ctx) {
		t.Fatal("expected fire via content condition")
	}
	if !called {
		t.Fatal("expected MatchCondition to be invoked")
	}
}

func TestEvaluateNilTrigger(t *testing.T) {
	if Evaluate(nil, Context{}) {
		t.Fatal("nil trigger should never fire")
	}
}

func TestEvaluateTimeoutTrigger(t *testing.T) {
	trig := &config.Trigger{On: "tools/call", Timeout: "1s", OnTimeout: "fallback"}
	entered := time.Now()
	ctx := Context{PhaseEnteredAt: entered, Now: entered.Add(500 * time.Millisecond)}
	if EvaluateTimeout(trig, ctx) {
		t.Fatal("expected no timeout before elapsed")
	}
	ctx.Now = entered.Add(2 * time.Second)
	if !EvaluateTimeout(trig, ctx) {
		t.Fatal("expected timeout after elapsed")
	}
}

func TestEvaluateTimeoutRequiresOnField(t *testing.T) {
	trig := &config.Trigger{Timeout: "1s"}
	if trig.IsTimeoutTrigger() {
		t.Fatal("a bare timeout with no On is not a timeout trigger (it's malformed)")
	}
}
