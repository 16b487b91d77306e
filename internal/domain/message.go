package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const Version = "2.0"

// Reserved protocol methods handled before the application handler.
const (
	MethodPing      = "ping"
	MethodReconnect = "reconnect"
	MethodPoll      = "poll"
)

const (
	PongPayloadField = "value"
	Pong             = "pong"

	ReconnectionOK         = "OK"
	ReconnectionSuccessful = "reconnected"
)

// ID is the raw JSON correlation id; numbers and strings are both legal.
type ID = json.RawMessage

// NullID answers messages whose id could not be read.
var NullID = ID("null")

func IntID(n int64) ID { return ID(strconv.FormatInt(n, 10)) }

// IDKey normalizes an id so that it can be used as a map key.
func IDKey(id ID) string {
	return string(bytes.TrimSpace(id))
}

func hasID(id ID) bool {
	k := IDKey(id)
	return k != "" && k != "null"
}

type Request struct {
	JSONRPC   string          `json:"jsonrpc"`
	Method    string          `json:"method"`
	ID        ID              `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds an outgoing request; params are marshalled eagerly.
func NewRequest(id ID, method string, params any) (*Request, error) {
	req := &Request{JSONRPC: Version, Method: method, ID: id}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		req.Params = raw
	}
	return req, nil
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool { return !hasID(r.ID) }

func (r *Request) DecodeParams(v any) error {
	if len(r.Params) == 0 {
		return nil
	}
	return json.Unmarshal(r.Params, v)
}

func (r *Request) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}

type Response struct {
	JSONRPC   string         `json:"jsonrpc"`
	ID        ID             `json:"id,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Result    any            `json:"result,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

func NewResult(sessionID string, id ID, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, SessionID: sessionID, Result: result}
}

func NewErrorResponse(id ID, err *ResponseError) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}

// NewParseErrorResponse answers a message that could not be decoded; its
// id is an explicit null.
func NewParseErrorResponse() *Response {
	return NewErrorResponse(NullID, NewResponseError(CodeParseError, "Parse error"))
}

func (r *Response) IsError() bool { return r.Error != nil }

// DecodeResult unmarshals the result into v. Results decoded off the wire
// are kept raw until a consumer asks for them.
func (r *Response) DecodeResult(v any) error {
	switch res := r.Result.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return json.Unmarshal(res, v)
	default:
		raw, err := json.Marshal(res)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, v)
	}
}

func (r *Response) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// Message is either a Request or a Response, never both.
type Message struct {
	Request  *Request
	Response *Response
}

func (m Message) IsRequest() bool { return m.Request != nil }
