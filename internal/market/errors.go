package market

import (
	"errors"
	"fmt"
)

// ErrMalformed marks a response body that could not be decoded.
var ErrMalformed = errors.New("malformed response")

// StatusError is a non-200 market response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

func (e *StatusError) StatusCode() int {
	return e.Code
}
