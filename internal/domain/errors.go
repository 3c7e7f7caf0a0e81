package domain

import "fmt"

// AuthError signals that a full login sequence failed: wrong credentials,
// unreachable login surface, or the post-login landmark never appeared within
// the bounded wait.
type AuthError struct {
	Reason string
	Err    error
}

func (e AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("portal login failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("portal login failed: %s", e.Reason)
}

func (e AuthError) Unwrap() error { return e.Err }

// NavigationError signals that the attendance surface itself could not be
// reached. A rejected action is not a NavigationError; that is a normal
// PageResult.
type NavigationError struct {
	Reason string
	Err    error
}

func (e NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attendance surface unreachable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("attendance surface unreachable: %s", e.Reason)
}

func (e NavigationError) Unwrap() error { return e.Err }
