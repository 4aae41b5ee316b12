// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses so every handler
// writes status codes, headers and error bodies the same way.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"evcharge/internal/core"
	"evcharge/internal/importer"
	"evcharge/internal/session"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode  int
	body        any
	raw         []byte
	contentType string
	headers     map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode:  http.StatusOK,
		contentType: "application/json",
		headers:     make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets a value to be JSON encoded.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Raw sets a pre-encoded body with its content type.
func (b *JSONResponseBuilder) Raw(contentType string, content []byte) *JSONResponseBuilder {
	b.contentType = contentType
	b.raw = content
	b.body = nil
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	payload := b.raw
	if b.body != nil {
		encoded, err := json.Marshal(b.body)
		if err != nil {
			b.statusCode = http.StatusInternalServerError
			encoded, _ = json.Marshal(ErrorBody{Error: "failed to encode response", Code: "internal_error"})
		}
		payload = append(encoded, '\n')
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(payload) > 0 {
		w.Header().Set("Content-Type", b.contentType)
	}
	w.WriteHeader(b.statusCode)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
	}
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, Code: code})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(code, message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, code, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal_error", message)
}

// RequestBodyError answers an unreadable body: 413 when it exceeded the
// size cap, 400 otherwise.
func RequestBodyError(err error) *JSONResponseBuilder {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrorResponse(http.StatusRequestEntityTooLarge, "payload_too_large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	}
	return BadRequestError(err.Error())
}

// ErrorFromDomain maps service errors to status codes:
// validation 422, position 404, malformed input 400, anything else 500.
func ErrorFromDomain(err error) *JSONResponseBuilder {
	switch {
	case core.IsValidationError(err):
		return ErrorResponse(http.StatusUnprocessableEntity, core.ErrorCode(err), err.Error())
	case errors.Is(err, session.ErrIndexOutOfRange):
		return NotFoundError("index_out_of_range", err.Error())
	case errors.Is(err, importer.ErrMissingColumn),
		errors.Is(err, core.ErrUnknownChartKind),
		errors.Is(err, core.ErrUnknownChartView):
		return BadRequestError(err.Error())
	default:
		return InternalServerError("internal error")
	}
}
