// Package httpx holds the response handling shared by the relay's REST clients.
//
// Response bodies are read through a size bound so a misbehaving upstream
// cannot exhaust memory, and non-2xx responses become *APIError values that
// keep the upstream body for the caller's error message.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxResponseSize bounds every JSON response read: 32 MB.
const MaxResponseSize int64 = 32 << 20

// APIError is a non-2xx response from a remote API.
type APIError struct {
	Service    string
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Service, e.Operation, e.StatusCode, body)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads and JSON-decodes a response body into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// CheckResponse returns an *APIError for any status outside 2xx. The body is
// consumed in that case.
func CheckResponse(resp *http.Response, service, operation string) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	data, _ := ReadResponse(resp.Body)
	return &APIError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       string(data),
	}
}

// AsAPIError unwraps err to an *APIError when it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
