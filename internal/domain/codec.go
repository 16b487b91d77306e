package domain

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	JSONRPC   string          `json:"jsonrpc"`
	Method    *string         `json:"method"`
	ID        ID              `json:"id"`
	SessionID string          `json:"sessionId"`
	Params    json.RawMessage `json:"params"`
	Result    json.RawMessage `json:"result"`
	Error     *ResponseError  `json:"error"`
}

// Decode classifies raw bytes: anything carrying a method is a request,
// everything else a response. Failures wrap ErrDecode.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.Method != nil {
		return Message{Request: &Request{
			JSONRPC:   env.JSONRPC,
			Method:    *env.Method,
			ID:        env.ID,
			SessionID: env.SessionID,
			Params:    env.Params,
		}}, nil
	}
	if len(env.Result) == 0 && env.Error == nil {
		return Message{}, fmt.Errorf("%w: neither method nor result/error present", ErrDecode)
	}
	resp := &Response{
		JSONRPC:   env.JSONRPC,
		ID:        env.ID,
		SessionID: env.SessionID,
		Error:     env.Error,
	}
	if len(env.Result) > 0 {
		resp.Result = env.Result
	}
	return Message{Response: resp}, nil
}

// DecodeResponses parses a JSON array of responses, as carried by poll.
func DecodeResponses(raw json.RawMessage) ([]*Response, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: poll params: %v", ErrDecode, err)
	}
	out := make([]*Response, 0, len(items))
	for _, item := range items {
		msg, err := Decode(item)
		if err != nil {
			return nil, err
		}
		if msg.Response == nil {
			return nil, fmt.Errorf("%w: poll params must contain responses", ErrDecode)
		}
		out = append(out, msg.Response)
	}
	return out, nil
}

func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
