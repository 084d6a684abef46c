package scanning

import "fmt"

// ProviderError reports that a backend was reachable but failed, or answered
// with a payload that could not be understood.
type ProviderError struct {
	Provider string
	Status   int // HTTP status or backend error code, 0 when not applicable
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
