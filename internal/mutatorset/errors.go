package mutatorset

import "errors"

// ErrStaleProof is returned when a membership proof's AOCL leaf index
// is beyond the current AOCL length (§4.1 "Failure").
var ErrStaleProof = errors.New("mutatorset: stale membership proof")

// ErrInconsistentRemoval is returned when a removal record's AOCL
// auth path does not match the current AOCL (§4.1 "Failure").
var ErrInconsistentRemoval = errors.New("mutatorset: inconsistent removal record")
