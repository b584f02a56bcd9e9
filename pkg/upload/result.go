package upload

import "fmt"

// RequestResult classifies the outcome of one upload attempt.
type RequestResult string

const (
	// ResultSuccess means the server accepted the batch.
	ResultSuccess RequestResult = "success"

	// ResultServerError means the server failed (HTTP 5xx). The batch is
	// kept locally and retried later.
	ResultServerError RequestResult = "server_error"

	// ResultInvalidAPIKey means the server rejected the credentials.
	ResultInvalidAPIKey RequestResult = "invalid_api_key"

	// ResultConfigurationError means the server rejected the request
	// shape (HTTP 400).
	ResultConfigurationError RequestResult = "configuration_error"

	// ResultConnectionError covers every other unexpected response,
	// including captive portal redirects.
	ResultConnectionError RequestResult = "connection_error"

	// ResultFailure means the request never produced a response.
	ResultFailure RequestResult = "failure"
)

// Retriable reports whether a later attempt with the same batch and
// credentials could still succeed.
func (r RequestResult) Retriable() bool {
	switch r {
	case ResultServerError, ResultConnectionError, ResultFailure:
		return true
	default:
		return false
	}
}

// RequestError captures an upload response that was rejected during
// classification. It is handed to the reporter, never returned to callers.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("upload rejected: status=%d body=%q", e.StatusCode, e.Body)
}
