package core

import (
	"errors"
	"net/url"
)

const failurePath = "/auth/fail"

// Fixed user-facing messages per authentication failure kind. These never
// carry internal error detail.
var failureMessages = []struct {
	kind    error
	message string
}{
	{ErrInvalidCredentials, "identifier or password incorrect"},
	{ErrUnknownUser, "identifier does not exist"},
	{ErrServiceUnavailable, "internal error, contact administrator"},
	{ErrMissingCredentials, "authentication request rejected"},
}

const unclassifiedMessage = "unknown error during login"

// ClassifyAuthFailure maps an authentication failure to its user-facing
// message and the redirect target carrying it, URL-encoded, as a query
// parameter. Errors outside the known kinds get the unclassified message.
func ClassifyAuthFailure(err error) (message, redirectTarget string) {
	message = unclassifiedMessage
	for _, m := range failureMessages {
		if errors.Is(err, m.kind) {
			message = m.message
			break
		}
	}
	return message, failurePath + "?message=" + url.QueryEscape(message)
}
