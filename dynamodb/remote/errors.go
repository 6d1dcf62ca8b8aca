package remote

import "fmt"

// RemoteOperationError is a failure reported by, or while reaching, a
// remote function.
type RemoteOperationError struct {
	Function   string
	StatusCode int
	// Status is the reply status when the function answered with a body.
	Status string
	// Reason is the upstream reason, if any was given.
	Reason string
}

func (e *RemoteOperationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unknown reason"
	}
	if e.Status != "" {
		return fmt.Sprintf("remote operation %s returned %s: %s", e.Function, e.Status, reason)
	}
	return fmt.Sprintf("remote operation %s failed with status %d: %s", e.Function, e.StatusCode, reason)
}
