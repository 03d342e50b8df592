package reliability

import (
	"context"
	"errors"
	"net"
)

// Kind labels why a remote call failed.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindCanceled        Kind = "canceled"
	KindNetwork         Kind = "network"
	KindStatus          Kind = "status"
	KindInvalidResponse Kind = "invalid_response"
	KindUnknown         Kind = "unknown"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyTransportError maps an error returned by an HTTP round trip or SDK call to a Kind.
func ClassifyTransportError(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// IsRetryable reports whether a failure of this kind could succeed if the user tries again.
// Nothing retries automatically; the flag is surfaced to clients.
func IsRetryable(kind Kind, status int) bool {
	switch kind {
	case KindTimeout, KindNetwork:
		return true
	case KindStatus:
		return IsRetryableHTTPStatus(status)
	default:
		return false
	}
}
