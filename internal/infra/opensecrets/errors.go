package opensecrets

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed API call.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindThrottled
	KindUnauthorized
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindThrottled:
		return "throttled"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// throttlePatterns are body fragments the API uses for quota rejections,
// sometimes with a 200 status and a plain-text body.
var throttlePatterns = []string{
	"call limit",
	"rate limit",
	"too many requests",
	"daily request count exceeded",
	"quota",
}

// APIError is a non-JSON or non-200 answer from the API.
type APIError struct {
	Method     string
	StatusCode int
	Body       string
	Kind       ErrorKind
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: %s (http %d): %s", e.Method, e.Kind, e.StatusCode, body)
}

// classify derives the kind of an API answer from its status and body.
func classify(status int, body string) ErrorKind {
	lower := strings.ToLower(body)
	for _, p := range throttlePatterns {
		if strings.Contains(lower, p) {
			return KindThrottled
		}
	}
	switch status {
	case http.StatusTooManyRequests:
		return KindThrottled
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	}
	if strings.Contains(lower, "invalid api key") || strings.Contains(lower, "unauthorized") {
		return KindUnauthorized
	}
	return KindTransient
}

// Classify returns the kind of err; errors that are not API answers
// (network failures, timeouts) are transient.
func Classify(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransient
}
