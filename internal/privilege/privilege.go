// Package privilege checks whether the process may rewrite the hosts file.
package privilege

import (
	apperrors "hostpin/pkg/errors"
)

// Checker reports whether the process holds the privilege needed to write
// the hosts file. It returns ErrPrivilegeDenied otherwise.
type Checker func() error

// Check verifies that the current process is elevated: root on Unix, an
// elevated token on Windows.
func Check() error {
	if !isElevated() {
		return apperrors.ErrPrivilegeDenied
	}
	return nil
}

// Skip is a Checker that always passes. It is used when privilege checks
// are disabled in the config, e.g. when the hosts path is user-writable.
func Skip() error { return nil }
