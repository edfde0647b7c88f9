package banksdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int       `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"error"`
	Message    string    `json:"message"`

	// RetryAfter is set from the Retry-After header on 429 responses.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("banksdk: HTTP %d %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("banksdk: HTTP %d %s: %s", e.StatusCode, e.Reason, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies that
// are not the server's problem format still yield an error with the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Reason == "" {
		apiErr = &APIError{
			Reason:  http.StatusText(resp.StatusCode),
			Message: strings.TrimSpace(string(body)),
		}
	}
	apiErr.StatusCode = resp.StatusCode

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}
