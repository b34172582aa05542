package facematch

import (
	"encoding/json"
	"time"
)

// Outcome tags the three shapes a Result can take.
type Outcome int

const (
	// OutcomeFailed means no decision could be made; ErrorKind says why.
	OutcomeFailed Outcome = iota
	// OutcomeMatched means distance <= threshold.
	OutcomeMatched
	// OutcomeNotMatched means a well-formed comparison with distance > threshold.
	OutcomeNotMatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNotMatched:
		return "not_matched"
	default:
		return "failed"
	}
}

// ErrorKind classifies failed outcomes.
type ErrorKind string

const (
	NoError               ErrorKind = ""
	NoFaceDetected        ErrorKind = "NoFaceDetected"
	EncodingFailed        ErrorKind = "EncodingFailed"
	FileNotFound          ErrorKind = "FileNotFound"
	InternalError         ErrorKind = "InternalError"
	MultipleFacesDetected ErrorKind = "MultipleFacesDetected"
)

// Result is the decision for one pair of images. The zero value is a failed
// result with no kind and should not be used; results come from an Evaluator.
type Result struct {
	outcome   Outcome
	distance  float64
	threshold float64
	kind      ErrorKind
	message   string
	facesA    int
	facesB    int
	elapsed   time.Duration
}

// Decide builds the result of comparing two embeddings: Matched when
// distance <= threshold, NotMatched otherwise.
func Decide(distance, threshold float64) Result {
	if distance <= threshold {
		return matched(distance, threshold)
	}
	return notMatched(distance, threshold)
}

// Failure builds a failed result. kind must not be NoError.
func Failure(kind ErrorKind, message string, threshold float64) Result {
	if kind == NoError {
		kind = InternalError
	}
	return failed(kind, message, threshold)
}

func matched(distance, threshold float64) Result {
	return Result{outcome: OutcomeMatched, distance: distance, threshold: threshold}
}

func notMatched(distance, threshold float64) Result {
	return Result{outcome: OutcomeNotMatched, distance: distance, threshold: threshold}
}

func failed(kind ErrorKind, message string, threshold float64) Result {
	return Result{outcome: OutcomeFailed, kind: kind, message: message, threshold: threshold}
}

func (r Result) withFaces(a, b int) Result {
	r.facesA, r.facesB = a, b
	return r
}

func (r Result) withElapsed(d time.Duration) Result {
	if d < 0 {
		d = 0
	}
	r.elapsed = d
	return r
}

// Outcome returns the result tag.
func (r Result) Outcome() Outcome { return r.outcome }

// IsMatch reports whether both images show the same person.
func (r Result) IsMatch() bool { return r.outcome == OutcomeMatched }

// Distance returns the embedding distance; ok is false when it was never computed.
func (r Result) Distance() (distance float64, ok bool) {
	if r.outcome == OutcomeFailed {
		return 0, false
	}
	return r.distance, true
}

// Threshold echoes the configured decision boundary.
func (r Result) Threshold() float64 { return r.threshold }

// ErrorKind is NoError unless the outcome is OutcomeFailed.
func (r Result) ErrorKind() ErrorKind { return r.kind }

// Message carries failure detail for logs.
func (r Result) Message() string { return r.message }

// FaceCounts returns how many regions the locator reported for each image.
func (r Result) FaceCounts() (a, b int) { return r.facesA, r.facesB }

// ProcessingTime is the wall-clock time the evaluation took.
func (r Result) ProcessingTime() time.Duration { return r.elapsed }

type resultJSON struct {
	Outcome               string     `json:"outcome"`
	IsMatch               bool       `json:"is_match"`
	Distance              *float64   `json:"distance"`
	Threshold             float64    `json:"threshold"`
	ErrorKind             *ErrorKind `json:"error_kind"`
	Message               string     `json:"message,omitempty"`
	FacesA                int        `json:"faces_a"`
	FacesB                int        `json:"faces_b"`
	ProcessingTimeSeconds float64    `json:"processing_time_seconds"`
}

// MarshalJSON renders absent distance and error kind as null.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Outcome:               r.outcome.String(),
		IsMatch:               r.IsMatch(),
		Threshold:             r.threshold,
		Message:               r.message,
		FacesA:                r.facesA,
		FacesB:                r.facesB,
		ProcessingTimeSeconds: r.elapsed.Seconds(),
	}
	if d, ok := r.Distance(); ok {
		out.Distance = &d
	}
	if r.kind != NoError {
		kind := r.kind
		out.ErrorKind = &kind
	}
	return json.Marshal(out)
}
