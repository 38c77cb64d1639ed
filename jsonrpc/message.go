package jsonrpc

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// RawMessage is a raw JSON value that delays unmarshaling.
type RawMessage = json.RawMessage

// Message is a JSON-RPC 2.0 body. It is one of *Request, *Notification,
// *SuccessResponse or *ErrorResponse.
type Message interface {
	isJSONRPC()
}

// Request is a JSON-RPC 2.0 request (expects a response).
type Request struct {
	ID     ID
	Method string
	Params RawMessage
}

// Notification is a JSON-RPC 2.0 notification (no response expected).
type Notification struct {
	Method string
	Params RawMessage
}

// SuccessResponse carries the result of a request.
type SuccessResponse struct {
	ID     ID
	Result RawMessage
}

// ErrorResponse carries the error a request failed with.
type ErrorResponse struct {
	ID    ID
	Error *Error
}

func (*Request) isJSONRPC()         {}
func (*Notification) isJSONRPC()    {}
func (*SuccessResponse) isJSONRPC() {}
func (*ErrorResponse) isJSONRPC()   {}

type wireRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      *ID        `json:"id,omitempty"`
	Method  string     `json:"method"`
	Params  RawMessage `json:"params,omitempty"`
}

type wireSuccess struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      ID         `json:"id"`
	Result  RawMessage `json:"result"`
}

type wireError struct {
	JSONRPC string `json:"jsonrpc"`
	ID      ID     `json:"id"`
	Error   *Error `json:"error"`
}

func (r *Request) MarshalJSON() ([]byte, error) {
	id := r.ID
	return json.Marshal(wireRequest{JSONRPC: Version, ID: &id, Method: r.Method, Params: r.Params})
}

func (n *Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRequest{JSONRPC: Version, Method: n.Method, Params: n.Params})
}

func (r *SuccessResponse) MarshalJSON() ([]byte, error) {
	result := r.Result
	if result == nil {
		result = RawMessage("null")
	}
	return json.Marshal(wireSuccess{JSONRPC: Version, ID: r.ID, Result: result})
}

func (r *ErrorResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireError{JSONRPC: Version, ID: r.ID, Error: r.Error})
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Errorf builds a protocol error with a formatted message.
func Errorf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// LSP-specific error codes.
const (
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
)

// ID represents a JSON-RPC 2.0 request ID (int or string).
type ID struct {
	value interface{}
}

// IntID creates an integer-valued JSON-RPC request ID.
func IntID(v int64) ID { return ID{value: v} }

// StringID creates a string-valued JSON-RPC request ID.
func StringID(v string) ID { return ID{value: v} }

func (id ID) IsValid() bool      { return id.value != nil }
func (id ID) Value() interface{} { return id.value }

// String renders the id for use as a map key and in logs.
func (id ID) String() string {
	switch v := id.value.(type) {
	case int64:
		return fmt.Sprintf("%d", v)
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return "null"
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = nil
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		id.value = n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.value = s
		return nil
	}
	return &Error{Code: CodeInvalidRequest, Message: "id must be a number, string, or null"}
}

// DecodeMessage classifies a JSON-RPC body by the fields it carries.
// Presence matters, not value: `"result": null` is a success response.
func DecodeMessage(data []byte) (Message, error) {
	var fields map[string]RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var id ID
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	}

	if raw, ok := fields["method"]; ok {
		var method string
		if err := json.Unmarshal(raw, &method); err != nil || method == "" {
			return nil, fmt.Errorf("%w: invalid method", ErrMalformedFrame)
		}
		if id.IsValid() {
			return &Request{ID: id, Method: method, Params: fields["params"]}, nil
		}
		return &Notification{Method: method, Params: fields["params"]}, nil
	}

	if raw, ok := fields["error"]; ok {
		rpcErr := &Error{}
		if err := json.Unmarshal(raw, rpcErr); err != nil {
			return nil, fmt.Errorf("%w: invalid error object: %v", ErrMalformedFrame, err)
		}
		return &ErrorResponse{ID: id, Error: rpcErr}, nil
	}
	if raw, ok := fields["result"]; ok {
		return &SuccessResponse{ID: id, Result: raw}, nil
	}
	return nil, fmt.Errorf("%w: neither method, result nor error present", ErrMalformedFrame)
}

// NewResponse creates the response for a request. A nil err yields a
// SuccessResponse with the marshaled result; a non-nil err must already be
// a protocol error (see Conn for the mapping of other errors).
func NewResponse(id ID, result interface{}, err *Error) Message {
	if err != nil {
		return &ErrorResponse{ID: id, Error: err}
	}
	if result == nil {
		return &SuccessResponse{ID: id, Result: RawMessage("null")}
	}
	data, merr := json.Marshal(result)
	if merr != nil {
		return &ErrorResponse{ID: id, Error: &Error{Code: CodeInternalError, Message: merr.Error()}}
	}
	return &SuccessResponse{ID: id, Result: data}
}
