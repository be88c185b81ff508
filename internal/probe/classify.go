package probe

import (
	"context"
	"errors"
	"net"
	"os"

	apperrors "hostpin/pkg/errors"
)

// newError wraps err as a probe failure that happened at stage. Deadline
// errors are reported as timeouts whatever stage they interrupted.
func newError(stage apperrors.FailureKind, address, domain string, err error) error {
	kind := stage
	if isTimeout(err) {
		kind = apperrors.KindTimeout
	}
	return &apperrors.ProbeError{Kind: kind, Address: address, Domain: domain, Err: err}
}

func isTimeout(err error) bool {
	// A probe cannot be cancelled from outside a run, so cancellation only
	// shows up when the per-probe context expires.
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
