package apiclient

import (
	"errors"
	"fmt"
)

// Sentinel errors returned at the client boundary. Callers branch with
// errors.Is; the session manager maps them onto its teardown rules.
var (
	// ErrUnauthorized means the access token was rejected by the server.
	ErrUnauthorized = errors.New("access token rejected")

	// ErrRefreshRejected means the refresh token is expired or revoked.
	// This is terminal for the stored credentials.
	ErrRefreshRejected = errors.New("refresh token rejected")

	// ErrInvalidCredentials means a login or registration was refused.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMalformedResponse means the server answered with a payload the
	// client cannot trust (undecodable body, unknown role, missing fields).
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError carries a server-reported failure that is none of the sentinel
// conditions above.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// NetworkError marks a transport-level failure. The session manager never
// destroys credentials on a NetworkError.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is (or wraps) a transport failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
