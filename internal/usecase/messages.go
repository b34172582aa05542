package usecase

import (
	"fmt"

	"github.com/example/student-portal/internal/facematch"
)

// UserMessage is what a student is told about a verification result.
func UserMessage(res facematch.Result) string {
	switch res.Outcome() {
	case facematch.OutcomeMatched:
		return "profile picture updated"
	case facematch.OutcomeNotMatched:
		return "face verification failed, upload a picture of the same person"
	}
	switch res.ErrorKind() {
	case facematch.NoFaceDetected, facematch.EncodingFailed, facematch.MultipleFacesDetected:
		return "please upload a clear photo containing a face"
	default:
		return "could not process image"
	}
}

// RejectionError is returned when a new profile picture fails verification.
// Nothing was persisted.
type RejectionError struct {
	RequestID string
	Result    facematch.Result
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("profile picture rejected (%s): %s", e.Result.Outcome(), UserMessage(e.Result))
}
