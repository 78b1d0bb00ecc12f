package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	shellerrors "github.com/jrsteele09/go-account-shell/internal/errors"
)

const maxMessageLength = 512

// StatusError is a non-2xx answer from the identity service. It unwraps to
// the sentinel of its failure category so callers can use errors.Is.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("identity service returned %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return shellerrors.ErrInvalidCredentials
	case http.StatusForbidden:
		// only a package refusal goes to billing, any other 403 is retried
		if strings.Contains(strings.ToLower(e.Message), "package") {
			return shellerrors.ErrPackageExpired
		}
	}
	return shellerrors.ErrTransient
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newStatusError(status int, body []byte) *StatusError {
	return &StatusError{StatusCode: status, Message: errorMessage(body)}
}

// errorMessage reads {"message": ...} or {"error": ...}, falling back to the
// raw body text.
func errorMessage(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength]
	}
	return msg
}
