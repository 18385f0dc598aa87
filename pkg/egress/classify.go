// Package egress consumes outbound messages from the work-queue stream,
// translates them into platform payloads, and delivers them over HTTP with
// rate limiting, retries, and dead-letter capture.
package egress

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Stable delivery error codes.
const (
	CodeDecode      = "decode"
	CodeAdapter     = "adapter"
	CodeRateLimited = "rate_limited"
	CodeServer      = "server"
	CodeClient      = "client"
	CodeTransport   = "transport"
)

// DeliveryError is a classified delivery failure. Code is stable; RetryAfter
// is set for rate-limited responses.
type DeliveryError struct {
	Code       string
	Status     int
	RetryAfter time.Duration
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Body)
}

// Retryable reports whether the failure is worth another attempt.
func (e *DeliveryError) Retryable() bool {
	return e.Code == CodeServer || e.Code == CodeTransport
}

// maxErrorBody bounds how much of an error response is retained.
const maxErrorBody = 2048

// Classify maps a platform HTTP response onto the delivery outcome:
// 2xx nil; 429 rate-limited with parsed Retry-After; 5xx retryable server
// error; other 4xx permanent client error.
func Classify(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))

	if res.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := ParseRetryAfter(res.Header.Get("Retry-After"))
		return &DeliveryError{
			Code:       CodeRateLimited,
			Status:     res.StatusCode,
			RetryAfter: retryAfter,
			Body:       string(body),
		}
	}

	if res.StatusCode >= 500 {
		return &DeliveryError{Code: CodeServer, Status: res.StatusCode, Body: string(body)}
	}

	return &DeliveryError{Code: CodeClient, Status: res.StatusCode, Body: string(body)}
}

// ParseRetryAfter parses a Retry-After header value: either delay seconds or
// an RFC2822-style HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if at, err := time.Parse(layout, value); err == nil {
			d := time.Until(at)
			if d < 0 {
				return 0, false
			}
			return d, true
		}
	}
	return 0, false
}
