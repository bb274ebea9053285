package ai

import (
	"context"
	"errors"
	"net"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// classifyTransportError maps HTTP client failures onto the provider
// sentinels so callers can branch without knowing the transport.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrInferenceTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrInferenceTimeout
	}
	return ErrProviderUnavailable
}
