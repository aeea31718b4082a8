package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/strata-site/strata/config"
	"github.com/strata-site/strata/router"
)

const maxBodyBytes = 1 << 20 // 1 MiB request body cap

// RequestContext carries everything a handler may consult for one request.
// It is constructed fresh per request and never read from ambient state.
type RequestContext struct {
	Request *http.Request
	Method  string
	Path    string
	Params  router.Params
	Query   url.Values
	Env     *config.Env
}

// DecodeJSON parses the request body into v. Callers surface failures as
// 400 Bad Request; malformed bodies are a per-handler contract.
func (c *RequestContext) DecodeJSON(v any) error {
	if c.Request == nil || c.Request.Body == nil {
		return fmt.Errorf("empty request body")
	}
	decoder := json.NewDecoder(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// Response is the value handlers return; ownership transfers to the
// dispatcher, which writes it exactly once.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Handler maps a RequestContext to a Response for one (pattern, method)
// pair. Returning an error (or panicking) yields a 500 to the client.
type Handler func(*RequestContext) (*Response, error)

// JSONResponse marshals payload into an application/json response.
func JSONResponse(status int, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	resp := &Response{Status: status, Header: http.Header{}, Body: body}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

// ErrorResponse builds the conventional {"error": message} JSON body.
func ErrorResponse(status int, message string) (*Response, error) {
	if message == "" {
		message = http.StatusText(status)
	}
	return JSONResponse(status, map[string]string{"error": message})
}

// BytesResponse wraps a raw payload with an explicit content type.
func BytesResponse(status int, contentType string, body []byte) *Response {
	resp := &Response{Status: status, Header: http.Header{}, Body: body}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}
