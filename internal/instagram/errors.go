package instagram

import "errors"

var (
	// ErrTwoFactorRequired indicates login stopped at a second-factor
	// challenge that was not (or not yet) completed. When this error is
	// returned the browser is intentionally kept open so the challenge
	// can still be completed manually.
	ErrTwoFactorRequired = errors.New("two-factor verification required")

	// ErrLoginFailed indicates the login surface rejected the attempt
	ErrLoginFailed = errors.New("login failed")

	// ErrSessionExpired indicates a stored session no longer passes the
	// logged-in check
	ErrSessionExpired = errors.New("session expired")
)
