package mcp

import (
	"encoding/json"
	"fmt"
)

// Request is a JSON-RPC 2.0 request or notification (ID is nil for
// notifications, per §6.3's disambiguation-by-key-presence rule).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether this message carries no id.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewErrorResponse builds a Response carrying the given JSON-RPC error.
func NewErrorResponse(id interface{}, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

// NewResultResponse builds a Response carrying a successful result.
func NewResultResponse(id interface{}, result interface{}) (*Response, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: payload}, nil
}

// NewNotification marshals a server-initiated notification: a Request with
// no id (§6.3's "method without id ⇒ Notification").
func NewNotification(method string, params interface{}) ([]byte, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Request{JSONRPC: "2.0", Method: method, Params: raw})
}

// NewServerRequest marshals a server-initiated request carrying id, used by
// side effects that probe client id-handling (e.g. duplicate_request_ids).
func NewServerRequest(id interface{}, method string, params interface{}) ([]byte, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw})
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

// MessageKind classifies a decoded message by key presence (§6.3).
type MessageKind int

const (
	KindRequest MessageKind = iota
	KindNotification
	KindResponse
	KindInvalid
)

// envelope is used only to sniff which fields are present before committing
// to a concrete decode target.
type envelope struct {
	Method *string         `json:"method"`
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Classify inspects raw JSON and reports which kind of JSON-RPC message it
// is without fully decoding it, per §6.3: "result/error ⇒ Response;
// method + id ⇒ Request; method without id ⇒ Notification."
func Classify(raw []byte) MessageKind {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return KindInvalid
	}
	if env.Result != nil || env.Error != nil {
		return KindResponse
	}
	if env.Method != nil {
		hasID := len(env.ID) > 0 && string(env.ID) != "null"
		if hasID {
			return KindRequest
		}
		return KindNotification
	}
	return KindInvalid
}

// DecodeRequest decodes raw bytes as a Request. It does not check the
// jsonrpc version field (mismatches are logged by the caller, not here —
// §4.7 step 2 says "log mismatches but accept").
func DecodeRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Tool is the projection of an effective tool shown to a client (§4.6).
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Resource is the projection of an effective resource (§4.6).
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Prompt is the projection of an effective prompt (§4.6).
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// ContentItem is one element of a tools/call content array.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolCallResult is the packaged {content, isError?} result of tools/call.
type ToolCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ResourceContent is one element of a resources/read contents array.
type ResourceContent struct {
	URI      string `json:"uri"`
	Text     string `json:"text"`
	MimeType string `json:"mimeType,omitempty"`
}

// ResourceReadResult is the packaged {contents: [...]} result.
type ResourceReadResult struct {
	Contents []ResourceContent `json:"contents"`
}

// PromptMessageContent is the {type, text} body of a prompt message.
type PromptMessageContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type PromptMessage struct {
	Role    string               `json:"role"`
	Content PromptMessageContent `json:"content"`
}

// PromptGetResult is the packaged {messages, description?} result.
type PromptGetResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// ClientInfo/ServerInfo/InitializeParams/InitializeResult round out the
// initialize handshake (§4.6).
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      ClientInfo             `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      ServerInfo             `json:"serverInfo"`
}
