package activity

import "fmt"

// InvalidEventError rejects malformed or future-dated input. It is never retried.
type InvalidEventError struct {
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid activity event: %s", e.Reason)
}
