// Package biometric defines the identity-verification capability the
// attendance gate depends on. The contract is implementation-agnostic: any
// matcher that can derive an encoding from a captured sample and compare two
// encodings can replace the reference pixel-sampling implementation without
// touching the gate.
package biometric

import "context"

// DefaultThreshold is the reference similarity threshold: a candidate
// encoding must score at least this against the stored one to verify.
const DefaultThreshold = 0.8

// Matcher derives encodings from captured samples and verifies samples
// against stored encodings. Implementations must be stateless and safe for
// concurrent use; both operations honor context cancellation.
type Matcher interface {
	// Enroll derives an encoding from a raw captured sample (base64 image
	// data, with or without a data-URL prefix). Deterministic for a given
	// sample and encoder version.
	//
	// Errors: CodeNoSubjectDetected when no identifiable subject is found,
	// CodeAmbiguousSample when more than one candidate region is found,
	// CodeInvalidInput when the sample cannot be decoded. Context expiry
	// propagates as the context error.
	Enroll(ctx context.Context, sample string) (Encoding, error)

	// Verify derives an encoding from the sample and compares it against
	// stored. Enrollment failures report uniformly as (false, nil) so the
	// outcome does not reveal why the sample was unusable; context expiry is
	// the one exception and propagates so callers can distinguish a timeout
	// from a mismatch.
	Verify(ctx context.Context, sample string, stored Encoding) (bool, error)
}
