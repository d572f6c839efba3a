package pkcs12

import (
	"encoding/asn1"
	"fmt"
	"unicode/utf16"

	cryptoutilLiberr "cryptoutil/pkcs12/internal/liberr"
)

// wrapAsn1Error turns a raw encoding/asn1 failure into liberr.ErrAsn1Invalid,
// keeping the underlying error reachable via errors.Is/errors.As.
func wrapAsn1Error(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("pkcs12: %s: %w: %w", context, cryptoutilLiberr.ErrAsn1Invalid, err)
}

// nullParameters is the DER encoding of the ASN.1 NULL value, used as the
// parameters field of AlgorithmIdentifiers that take no argument (Sha1/Sha2).
var nullParameters = []byte{0x05, 0x00}

// rawTag reports the tag byte of a DER/BER TLV, used to distinguish the two
// arms of the Pbkdf2Salt CHOICE (OCTET STRING vs. SEQUENCE) without a full
// unmarshal.
func rawTag(der []byte) (byte, bool) {
	if len(der) == 0 {
		return 0, false
	}
	return der[0], true
}

const (
	tagOctetString = 0x04
	tagSequence    = 0x30
)

// unmarshalExact unmarshals der into out and requires that the whole input
// be consumed; self-contained values reject trailing garbage.
func unmarshalExact(context string, der []byte, out any) error {
	rest, err := asn1.Unmarshal(der, out)
	if err != nil {
		return wrapAsn1Error(context, err)
	}
	if len(rest) != 0 {
		return wrapAsn1Error(context, fmt.Errorf("%d trailing bytes", len(rest)))
	}
	return nil
}

// marshalBMPValue encodes s as a BMPString TLV (UTF-16BE content octets).
// Unlike the KDF password encoding, attribute values carry no trailing NUL.
// encoding/asn1 has no BMPString string type, so the TLV is built by hand.
func marshalBMPValue(s string) ([]byte, error) {
	runes := []rune(s)
	content := make([]byte, 0, 2*len(runes))
	for _, r := range runes {
		if r > 0xFFFF {
			return nil, wrapAsn1Error("bmp string", fmt.Errorf("rune %q outside the basic multilingual plane", r))
		}
		content = append(content, byte(r>>8), byte(r))
	}
	return marshalOrPanic("bmp string", asn1.RawValue{
		Class: asn1.ClassUniversal,
		Tag:   asn1.TagBMPString,
		Bytes: content,
	}), nil
}

// parseBMPValue decodes a BMPString TLV into a Go string.
func parseBMPValue(der []byte) (string, error) {
	var raw asn1.RawValue
	if err := unmarshalExact("bmp string", der, &raw); err != nil {
		return "", err
	}
	if raw.Class != asn1.ClassUniversal || raw.Tag != asn1.TagBMPString || raw.IsCompound {
		return "", wrapAsn1Error("bmp string", fmt.Errorf("unexpected tag"))
	}
	if len(raw.Bytes)%2 != 0 {
		return "", wrapAsn1Error("bmp string", fmt.Errorf("odd content length %d", len(raw.Bytes)))
	}
	units := make([]uint16, 0, len(raw.Bytes)/2)
	for i := 0; i < len(raw.Bytes); i += 2 {
		units = append(units, uint16(raw.Bytes[i])<<8|uint16(raw.Bytes[i+1]))
	}
	return string(utf16.Decode(units)), nil
}

// marshalOrPanic wraps asn1.Marshal for call sites that marshal values this
// package built itself (not attacker-controlled), where a marshal failure
// means a bug in this package rather than bad input.
func marshalOrPanic(context string, v any) []byte {
	der, err := asn1.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("pkcs12: %s: %v", context, err))
	}
	return der
}
