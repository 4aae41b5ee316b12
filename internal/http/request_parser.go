// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// A record body may arrive as JSON or as a url-encoded form.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"evcharge/internal/core"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing. A body over
// maxBodyBytes makes Parse return an *http.MaxBytesError.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = readBody(w, r)
	return p
}

// readBody reads the whole body, failing instead of truncating when it
// exceeds maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("malformed JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(p.formData.Get(key))
	}
	return ""
}

// Candidate collects the record fields of the body. Validation happens in
// the service.
func (p *RequestBodyParser) Candidate() core.Candidate {
	return core.Candidate{
		Date:          p.Get("date"),
		EnergyKwh:     p.Get("energy_kwh"),
		Cost:          p.Get("cost"),
		Location:      p.Get("location"),
		ChargePercent: p.Get("charge_percent"),
	}
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParsePosition reads the {position} path value.
func ParsePosition(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.PathValue("position"))
	pos, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", raw)
	}
	return pos, nil
}

// ParseChartParams reads view and kind from the query string. Missing
// values default to the records view as bars.
func ParseChartParams(query url.Values) (core.ChartView, core.ChartKind, error) {
	view, err := core.ParseChartView(query.Get("view"))
	if err != nil {
		return "", "", err
	}
	kind, err := core.ParseChartKind(query.Get("kind"))
	if err != nil {
		return "", "", err
	}
	return view, kind, nil
}
