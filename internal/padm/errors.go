package padm

import "fmt"

// AuthError reports a failed credential exchange with the token endpoint:
// rejected credentials, an unreachable host, or a malformed token response.
// It is fatal for the current poll cycle but never for the process.
type AuthError struct {
	Host string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("padm: authentication against %s failed: %v", e.Host, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AuthRejectedError reports that the variables endpoint refused the bearer
// token (401/403). Distinguished from TransportError because the poller must
// force a token refresh before retrying, not just retry.
type AuthRejectedError struct {
	StatusCode int
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("padm: request rejected with status %d", e.StatusCode)
}

// TransportError reports a network failure, timeout, or unexpected HTTP
// status from the variables endpoint. Retryable within a poll cycle.
type TransportError struct {
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("padm: transport failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("padm: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a malformed variables response body. It does not
// invalidate the cached token.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("padm: malformed variables response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
