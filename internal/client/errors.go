package client

import "fmt"

// Error codes returned by the account API.
const (
	CodePasswordError         = "PasswordError"
	CodeInputValidationFailed = "InputValidationFailed"
)

// PasswordError is returned when the current password is wrong.
type PasswordError struct {
	Message string
}

func (e *PasswordError) Error() string {
	return "password error: " + e.Message
}

// InputValidationFailed is returned when a submitted value breaks the API's
// input rules. Field names the offending input when known.
type InputValidationFailed struct {
	Field   string
	Message string
}

func (e *InputValidationFailed) Error() string {
	if e.Field == "" {
		return "input validation failed: " + e.Message
	}
	return fmt.Sprintf("input validation failed for %s: %s", e.Field, e.Message)
}

// APIError is any other error reported by the account API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s (status %d): %s", e.Code, e.Status, e.Message)
}

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Field string `json:"field"`
		} `json:"details"`
	} `json:"error"`
}

// typed converts an error envelope into the matching error type.
func (env errorEnvelope) typed(status int) error {
	switch env.Error.Code {
	case CodePasswordError:
		return &PasswordError{Message: env.Error.Message}
	case CodeInputValidationFailed:
		return &InputValidationFailed{Field: env.Error.Details.Field, Message: env.Error.Message}
	default:
		return &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message}
	}
}
