package avatar

import (
	"errors"
	"net/http"
	"strings"
)

// Category groups avatar start failures for operator guidance. It never
// changes control flow: every category falls back the same way.
type Category string

const (
	CategoryCredits   Category = "credits"
	CategoryAuth      Category = "auth"
	CategoryNotFound  Category = "not_found"
	CategoryForbidden Category = "forbidden"
	CategoryUnknown   Category = "unknown"
)

// Classify inspects err, status code first and message text second.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusPaymentRequired:
			return CategoryCredits
		case http.StatusUnauthorized:
			return CategoryAuth
		case http.StatusNotFound:
			return CategoryNotFound
		case http.StatusForbidden:
			return CategoryForbidden
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "out of conversational credits") || strings.Contains(msg, "402"):
		return CategoryCredits
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized"):
		return CategoryAuth
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return CategoryNotFound
	case strings.Contains(msg, "403") || strings.Contains(msg, "forbidden"):
		return CategoryForbidden
	}
	return CategoryUnknown
}

// Guidance returns a one-line remediation hint for c.
func Guidance(c Category) string {
	switch c {
	case CategoryCredits:
		return "add credits to the Tavus account"
	case CategoryAuth:
		return "check TAVUS_API_KEY"
	case CategoryNotFound:
		return "verify TAVUS_PERSONA_ID or TAVUS_REPLICA_ID"
	case CategoryForbidden:
		return "check API key permissions and account access"
	default:
		return "check Tavus API status and the avatar configuration"
	}
}

func (c Category) summary() string {
	switch c {
	case CategoryCredits:
		return "out of credits"
	case CategoryAuth:
		return "invalid API key"
	case CategoryNotFound:
		return "persona or replica not found"
	case CategoryForbidden:
		return "access forbidden"
	default:
		return "start failed"
	}
}
