package deepface

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable     = errors.New("deepface service unavailable")
	ErrInvalidResponse = errors.New("invalid response from deepface")
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) clientError() bool {
	return e.Code >= 400 && e.Code < 500
}
