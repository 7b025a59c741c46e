package eventdb

import "fmt"

// EncodingError reports a malformed hex prefix or wrong-sized integer
// field in a Filter. Query construction fails before any scan starts, so
// no state is touched.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string { return "eventdb: encoding error: " + e.Reason }

// SerializationError reports a failure to encode or decode an archived
// index record or word list. On read it indicates substrate corruption;
// on write it is an ingestion failure.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("eventdb: serialization error: %s: %v", e.Reason, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// InvalidError wraps the reason ingestion rejected an event outright. It
// is a result, not a substrate failure.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string { return "eventdb: invalid event: " + e.Reason }

// ErrInvalid constructs an *InvalidError, used internally by ingestion and
// by key derivation for oversized replace-keys.
func ErrInvalid(reason string) error { return &InvalidError{Reason: reason} }

// Outcome classifies the result of a successful Put call. It is returned
// alongside a nil error; "this event was a duplicate" is an expected
// branch of ingestion, not a failure.
type Outcome int

const (
	// OutcomeInvalid means the event failed validation; no state changed.
	OutcomeInvalid Outcome = iota
	// OutcomeDuplicate means id_uid[id] already existed.
	OutcomeDuplicate
	// OutcomeDeleted means a tombstone already blocks this id.
	OutcomeDeleted
	// OutcomeReplaceIgnored means a newer event already holds the
	// replace-key; no state changed.
	OutcomeReplaceIgnored
	// OutcomeOK means the event was accepted and written.
	OutcomeOK
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "Invalid"
	case OutcomeDuplicate:
		return "Duplicate"
	case OutcomeDeleted:
		return "Deleted"
	case OutcomeReplaceIgnored:
		return "ReplaceIgnored"
	case OutcomeOK:
		return "Ok"
	default:
		return "Unknown"
	}
}

// PutResult is what Put returns: the classification, for OutcomeOK the
// count of events written plus events deleted by this call, and for
// OutcomeInvalid the rejection reason.
type PutResult struct {
	Outcome Outcome
	N       int
	Reason  string
}
