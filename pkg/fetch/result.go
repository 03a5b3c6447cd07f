package fetch

// Outcome tags the result of one attempt.
type Outcome string

const (
	// OutcomeNetwork is a successful network response.
	OutcomeNetwork Outcome = "network"

	// OutcomeCacheHit is a fresh cache entry served without a network call.
	OutcomeCacheHit Outcome = "cache_hit"

	// OutcomeHTTPError is a non-2xx response.
	OutcomeHTTPError Outcome = "http_error"

	// OutcomeTransportError is a failed or aborted transport call.
	OutcomeTransportError Outcome = "transport_error"

	// OutcomeParseError is a body that could not be decoded.
	OutcomeParseError Outcome = "parse_error"

	// OutcomeUnrecognized is a panic recovered inside the attempt.
	OutcomeUnrecognized Outcome = "unrecognized"

	// OutcomeAborted is an attempt superseded by a newer one or by Close.
	OutcomeAborted Outcome = "aborted"
)

// Result is what an attempt produced, before callbacks and retries are applied.
type Result[T any] struct {
	Outcome    Outcome
	Data       *T
	Err        error
	StatusCode int

	// Stored reports whether the response was written to the cache.
	Stored bool
}

// Failed reports whether the attempt ended in a classified failure.
func (r Result[T]) Failed() bool {
	switch r.Outcome {
	case OutcomeHTTPError, OutcomeTransportError, OutcomeParseError:
		return true
	default:
		return false
	}
}
