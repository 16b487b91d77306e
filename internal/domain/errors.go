package domain

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC error codes plus the reconnection failure code.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeReconnectionError = 99999
)

const ReconnectionErrorMessage = "Reconnection error"

var ErrDecode = errors.New("malformed message")

// ResponseError is the client-visible error object of a response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func NewResponseError(code int, message string) *ResponseError {
	return &ResponseError{Code: code, Message: message}
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func ReconnectionError() *ResponseError {
	return NewResponseError(CodeReconnectionError, ReconnectionErrorMessage)
}

func MethodNotFound(method string) *ResponseError {
	return &ResponseError{Code: CodeMethodNotFound, Message: "Method not found", Data: method}
}

func InvalidParams(err error) *ResponseError {
	return &ResponseError{Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
}

// AsResponseError maps any error to a wire error; unknown errors become
// internal errors carrying the original text.
func AsResponseError(err error) *ResponseError {
	var re *ResponseError
	if errors.As(err, &re) {
		return re
	}
	return &ResponseError{Code: CodeInternalError, Message: err.Error()}
}
