package phase

import (
	"testing"
	"time"
)

func TestFactoryGlobalScopeSharesEngine(t *testing.T) {
	f := NewFactory(ScopeGlobal, baselineFixture(), rugPullPhases(), 100, time.Hour)
	h1 := f.HandleFor("conn-1")
	h2 := f.HandleFor("conn-2")
	if h1.Engine() != h2.Engine() {
		t.Fatal("expected global scope to share one engine across connections")
	}
	f.StopAll()
}

func TestFactoryPerConnectionScopeOwnsEngine(t *testing.T) {
	f := NewFactory(ScopePerConnection, baselineFixture(), rugPullPhases(), 100, time.Hour)
	h1 := f.HandleFor("conn-1")
	h2 := f.HandleFor("conn-2")
	if h1.Engine() == h2.Engine() {
		t.Fatal("expected per_connection scope to give each connection its own engine")
	}
	h1.Release()
	h2.Release()
}

func TestParseScopeDefaultsToGlobal(t *testing.T) {
	if ParseScope("") != ScopeGlobal {
		t.Fatal("expected empty scope to default to global")
	}
	if ParseScope("bogus") != ScopeGlobal {
		t.Fatal("expected unrecognized scope to default to global")
	}
	if ParseScope("per_connection") != ScopePerConnection {
		t.Fatal("expected per_connection to parse correctly")
	}
}

func TestHandleReleaseIsNoOpForShared(t *testing.T) {
	f := NewFactory(ScopeGlobal, baselineFixture(), rugPullPhases(), 100, time.Hour)
	h := f.HandleFor("conn-1")
	h.Release()
	// engine should still be usable after Release on a shared handle
	h.Engine().Effective()
	f.StopAll()
}
