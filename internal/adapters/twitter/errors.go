package twitter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCategory classifies X API failures for callers that branch on them
type ErrorCategory string

const (
	CategoryCreditsDepleted ErrorCategory = "credits_depleted"
	CategoryRateLimited     ErrorCategory = "rate_limited"
	CategoryAuth            ErrorCategory = "auth"
	CategoryGeneric         ErrorCategory = "generic"
)

const (
	msgCreditsDepleted = "X API: Your account has no credits left. Add credits in the X Developer Portal (developer.x.com) to use the API."
	msgRateLimited     = "X API: Rate limit exceeded. Try again later."
	msgAuth            = "X API: Invalid or expired credentials. Check your X Bearer Token in Settings or .env.local."
)

// APIError is a non-2xx response from the X API with a human-readable message
type APIError struct {
	Category ErrorCategory
	Message  string
	Status   int
}

func (e *APIError) Error() string {
	return e.Message
}

// newAPIError maps status and body to a category and message
func newAPIError(status int, body string) *APIError {
	var parsed errorBody
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		msg := body
		if msg == "" {
			msg = fmt.Sprintf("X API error %d", status)
		}
		return &APIError{Status: status, Category: categoryFor(status), Message: msg}
	}

	switch {
	case status == http.StatusPaymentRequired &&
		(parsed.Title == "CreditsDepleted" || strings.Contains(strings.ToLower(parsed.Detail), "credits")):
		return &APIError{Status: status, Category: CategoryCreditsDepleted, Message: msgCreditsDepleted}
	case status == http.StatusTooManyRequests:
		return &APIError{Status: status, Category: CategoryRateLimited, Message: msgRateLimited}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &APIError{Status: status, Category: CategoryAuth, Message: msgAuth}
	}

	msg := body
	switch {
	case parsed.Detail != "":
		msg = "X API: " + parsed.Detail
	case parsed.Title != "":
		msg = "X API: " + parsed.Title
	case msg == "":
		msg = fmt.Sprintf("X API error %d", status)
	}

	return &APIError{Status: status, Category: CategoryGeneric, Message: msg}
}

// categoryFor classifies unparseable bodies by status alone; messages stay raw
func categoryFor(status int) ErrorCategory {
	switch status {
	case http.StatusTooManyRequests:
		return CategoryRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryAuth
	}
	return CategoryGeneric
}
