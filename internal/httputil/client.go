// Package httputil holds the JSON response helpers used by the API handlers
// and the client side of the same conventions.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPClient is the part of *http.Client the API client needs. Tests swap in
// a stub.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout bounds a single request from NewStandardClient. Uploads of
// large CAN logs are processed synchronously, so it is generous.
const DefaultTimeout = 5 * time.Minute

// NewStandardClient returns c, or a client with DefaultTimeout when c is nil.
func NewStandardClient(c *http.Client) HTTPClient {
	if c == nil {
		c = &http.Client{Timeout: DefaultTimeout}
	}
	return c
}

// StatusError is a non-2xx response decoded from an API error body.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// DecodeJSON closes resp.Body after decoding it into v. A non-2xx status
// returns a *StatusError carrying the server's error message, if any. v may
// be nil when the body is not needed.
func DecodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb ErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			se.Message = eb.Error
		} else {
			se.Message = http.StatusText(resp.StatusCode)
		}
		return se
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
