package liberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	cryptoutilLiberr "cryptoutil/pkcs12/internal/liberr"
)

func TestIs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   error
		expected bool
	}{
		{"is-asn1-invalid", cryptoutilLiberr.ErrAsn1Invalid, true},
		{"is-decrypt-failure", cryptoutilLiberr.ErrDecryptFailure, true},
		{"is-wrapped-asn1-invalid", fmt.Errorf("outer: %w", cryptoutilLiberr.ErrAsn1Invalid), true},
		{"is-not-random-error", errors.New("random error"), false},
		{"is-not-nil", nil, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, cryptoutilLiberr.Is(tc.target))
		})
	}
}

func TestContainsError(t *testing.T) {
	t.Parallel()

	errOne := errors.New("error one")
	errTwo := errors.New("error two")
	errs := []error{errOne, errTwo}

	require.True(t, cryptoutilLiberr.ContainsError(errs, errOne))
	require.False(t, cryptoutilLiberr.ContainsError(errs, errors.New("error three")))
	require.False(t, cryptoutilLiberr.ContainsError(errs, nil))
	require.False(t, cryptoutilLiberr.ContainsError(nil, errOne))
}

func TestErrsSliceContainsAllExpectedErrors(t *testing.T) {
	t.Parallel()

	expected := []error{
		cryptoutilLiberr.ErrAsn1Invalid,
		cryptoutilLiberr.ErrDecryptFailure,
		cryptoutilLiberr.ErrUnsupportedAlgorithm,
		cryptoutilLiberr.ErrUnsupportedPBKDF2Salt,
		cryptoutilLiberr.ErrInvalidPadding,
		cryptoutilLiberr.ErrAttributeSetEmpty,
		cryptoutilLiberr.ErrMissingParameters,
	}

	require.Len(t, cryptoutilLiberr.Errs, len(expected))
	for _, err := range expected {
		require.True(t, cryptoutilLiberr.ContainsError(cryptoutilLiberr.Errs, err), "missing %v", err)
	}
}
