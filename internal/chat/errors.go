package chat

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

var (
	// ErrChildNotFound is returned when no child exists for the identifier.
	ErrChildNotFound = errors.New("child profile not found")
	// ErrNoMascotAssigned is returned when the child has no mascot.
	ErrNoMascotAssigned = errors.New("no mascot assigned to child")
	// ErrNotConfigured is reported when the service runs without a model client.
	ErrNotConfigured = errors.New("completion service not configured")
)

// providerErrorTable maps substrings of a provider error message to the
// message shown to the child. The first match wins.
var providerErrorTable = []struct {
	substring string
	message   string
}{
	{"API_KEY", MsgInvalidAPIKey},
	{"quota", MsgProviderQuota},
}

// ClassifyProviderError maps a failed model call to a user-facing message.
// Structured API status codes are checked first, then the substring table.
// Anything unmatched, timeouts included, gets the generic apology.
func ClassifyProviderError(err error) string {
	if err == nil {
		return MsgGenericError
	}

	if code, ok := apiErrorCode(err); ok {
		switch code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return MsgInvalidAPIKey
		case http.StatusTooManyRequests:
			return MsgProviderQuota
		}
	}

	text := err.Error()
	for _, rule := range providerErrorTable {
		if strings.Contains(text, rule.substring) {
			return rule.message
		}
	}
	return MsgGenericError
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
