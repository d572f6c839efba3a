package pkcs12

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBerToDERPassesThroughDER(t *testing.T) {
	t.Parallel()

	pfx := buildModern(t, "hunter2")
	der := pfx.ToDER()

	got, err := berToDER(der)
	require.NoError(t, err)
	require.Equal(t, der, got)
}

func TestBerToDERIndefiniteLengthSequence(t *testing.T) {
	t.Parallel()

	// SEQUENCE (indefinite) { INTEGER 7 }
	ber := []byte{0x30, 0x80, 0x02, 0x01, 0x07, 0x00, 0x00}
	got, err := berToDER(ber)
	require.NoError(t, err)
	require.Equal(t, []byte{0x30, 0x03, 0x02, 0x01, 0x07}, got)
}

func TestBerToDERNestedIndefinite(t *testing.T) {
	t.Parallel()

	// SEQUENCE (indefinite) { SEQUENCE (indefinite) { NULL } }
	ber := []byte{0x30, 0x80, 0x30, 0x80, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00}
	got, err := berToDER(ber)
	require.NoError(t, err)
	require.Equal(t, []byte{0x30, 0x04, 0x30, 0x02, 0x05, 0x00}, got)
}

func TestBerToDERMergesConstructedOctetString(t *testing.T) {
	t.Parallel()

	// Constructed OCTET STRING (indefinite) { "aabb", "cc" }
	ber := []byte{0x24, 0x80, 0x04, 0x02, 0xaa, 0xbb, 0x04, 0x01, 0xcc, 0x00, 0x00}
	got, err := berToDER(ber)
	require.NoError(t, err)
	require.Equal(t, []byte{0x04, 0x03, 0xaa, 0xbb, 0xcc}, got)
}

func TestBerToDERMinimizesLongFormLength(t *testing.T) {
	t.Parallel()

	// INTEGER 7 with a gratuitous two-byte length.
	ber := []byte{0x02, 0x81, 0x01, 0x07}
	got, err := berToDER(ber)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x01, 0x07}, got)
}

func TestBerToDERRejectsTruncated(t *testing.T) {
	t.Parallel()

	for _, in := range [][]byte{
		{},
		{0x30},
		{0x30, 0x05, 0x02, 0x01},
		{0x30, 0x80, 0x02, 0x01, 0x07}, // indefinite, no end-of-contents
		{0x02, 0x80, 0x00, 0x00},       // indefinite length on a primitive
	} {
		_, err := berToDER(in)
		require.Error(t, err)
		require.True(t, IsLibraryError(err))
	}
}

func TestBerToDERRejectsTrailingBytes(t *testing.T) {
	t.Parallel()

	_, err := berToDER([]byte{0x05, 0x00, 0xff})
	require.Error(t, err)
}

func TestParseAcceptsIndefiniteLengthOuterSequence(t *testing.T) {
	t.Parallel()

	pfx := buildModern(t, "hunter2")
	der := pfx.ToDER()

	// Re-wrap the outer SEQUENCE with an indefinite length, as BER writers do.
	require.Equal(t, byte(0x30), der[0])
	content := sequenceContent(t, der)
	ber := append([]byte{0x30, 0x80}, content...)
	ber = append(ber, 0x00, 0x00)

	parsed, err := Parse(ber)
	require.NoError(t, err)
	require.True(t, parsed.VerifyMAC("hunter2"))
}

// sequenceContent strips the outer SEQUENCE header of a DER blob.
func sequenceContent(t *testing.T, der []byte) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(der), 2)
	if der[1] < 0x80 {
		return der[2:]
	}
	numBytes := int(der[1] & 0x7f)
	require.Greater(t, len(der), 2+numBytes)
	return der[2+numBytes:]
}
