package mcp

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MessageKind
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/cancelled"}`, KindNotification},
		{"notification null id", `{"jsonrpc":"2.0","id":null,"method":"notifications/cancelled"}`, KindNotification},
		{"response result", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
		{"response error", `{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"bad"}}`, KindResponse},
		{"invalid", `not json`, KindInvalid},
		{"empty object", `{}`, KindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify([]byte(tt.raw))
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRequestIsNotification(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"ping"}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if !req.IsNotification() {
		t.Error("expected notification")
	}

	req2, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":5,"method":"ping"}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req2.IsNotification() {
		t.Error("expected request, not notification")
	}
}

func TestParseUnknownMethodPolicy(t *testing.T) {
	if ParseUnknownMethodPolicy("ignore") != UnknownMethodIgnore {
		t.Error("expected ignore")
	}
	if ParseUnknownMethodPolicy("drop") != UnknownMethodDrop {
		t.Error("expected drop")
	}
	if ParseUnknownMethodPolicy("bogus") != UnknownMethodError {
		t.Error("expected default error policy")
	}
}

func TestEventNameForMethod(t *testing.T) {
	generic, specific := EventNameForMethod(MethodToolsCall)
	if generic != MethodToolsCall || !specific {
		t.Errorf("got %q %v", generic, specific)
	}
	generic, specific = EventNameForMethod(MethodToolsList)
	if generic != MethodToolsList || specific {
		t.Errorf("got %q %v", generic, specific)
	}
}
