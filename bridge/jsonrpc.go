package bridge

import "encoding/json"

// Version is the JSON-RPC protocol version the bridge speaks.
const Version = "2.0"

// JSON-RPC error codes. The standard codes cover parse and dispatch
// failures; the -320xx range distinguishes the bridge's downstream failure
// kinds so callers can tell "tool failed" from "no answer in time" from
// "bridge misconfigured".
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeRemoteError    = -32000
	CodeTimeout        = -32001
	CodeTransportError = -32002
)

// Request is an inbound JSON-RPC call. ID is kept as raw JSON and echoed
// byte for byte, so numeric and string ids survive pipelined reordering.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is an outbound JSON-RPC reply. Exactly one of Result or Error is
// set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewResult builds a success response tagged with the request id.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, ID: normalizeID(id), Result: result}
}

// NewError builds an error response tagged with the request id.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: Version, ID: normalizeID(id), Error: &Error{Code: code, Message: message}}
}

// normalizeID substitutes the JSON null id for requests that carried none,
// which is what the parse-error response for an unreadable line must use.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
