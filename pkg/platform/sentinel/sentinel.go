package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so validators can translate them into
// their own failure taxonomy.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: credential or tenant does not exist in the store
// - ErrExpired: credential validity window has passed
// - ErrMalformed: bearer value does not match any recognized credential shape
// - ErrConflict: conditional write lost the race (expected expiry mismatch)
// - ErrUnavailable: store or cache temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrMalformed   = errors.New("malformed")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
