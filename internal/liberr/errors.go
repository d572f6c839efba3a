// Package liberr collects the sentinel errors this library returns, plus the
// small membership helpers callers and internal tests use to check against
// them: package-level Err* vars, a registry slice, and two tiny predicates
// instead of a custom error type hierarchy.
package liberr

import "errors"

var (
	ErrAsn1Invalid           = errors.New("pkcs12: invalid or truncated DER/BER encoding")
	ErrDecryptFailure        = errors.New("pkcs12: decryption failed")
	ErrUnsupportedAlgorithm  = errors.New("pkcs12: unsupported algorithm")
	ErrUnsupportedPBKDF2Salt = errors.New("pkcs12: PBKDF2 salt is not a specified octet string")
	ErrInvalidPadding        = errors.New("pkcs12: invalid PKCS#7 padding")
	ErrAttributeSetEmpty     = errors.New("pkcs12: attribute value SET must not be empty")
	ErrMissingParameters     = errors.New("pkcs12: algorithm identifier is missing required parameters")
)

// Errs lists every sentinel this package defines, for membership checks and
// exhaustiveness tests.
var Errs = []error{
	ErrAsn1Invalid,
	ErrDecryptFailure,
	ErrUnsupportedAlgorithm,
	ErrUnsupportedPBKDF2Salt,
	ErrInvalidPadding,
	ErrAttributeSetEmpty,
	ErrMissingParameters,
}

// Is reports whether target is one of this package's sentinel errors.
func Is(target error) bool {
	return ContainsError(Errs, target)
}

// ContainsError reports whether target matches any entry in errs, compared
// with errors.Is so wrapped errors (fmt.Errorf("%w", ...)) still match.
func ContainsError(errs []error, target error) bool {
	if target == nil {
		return false
	}
	for _, candidate := range errs {
		if errors.Is(target, candidate) {
			return true
		}
	}
	return false
}
