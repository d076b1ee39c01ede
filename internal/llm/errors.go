package llm

import "fmt"

// APICallError represents a transport-level failure calling the upstream endpoint
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API call failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("API call failed: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// ShapeError represents a response that came back but failed the output-shape check
type ShapeError struct {
	Message string
	Length  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("malformed response (%d bytes): %s", e.Length, e.Message)
}
