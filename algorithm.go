package pkcs12

import (
	"encoding/asn1"
	"fmt"

	cryptoutilLiberr "cryptoutil/pkcs12/internal/liberr"
)

// Recognized OIDs (RFC 7292 plus the RFC 8018/NIST OIDs PBES2 pulls in).
var (
	oidData                          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidEncryptedData                 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 6}
	oidFriendlyName                  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 20}
	oidLocalKeyID                    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 21}
	oidCertTypeX509Certificate       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 22, 1}
	oidCertTypeSDSICertificate       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 22, 2}
	oidPbeWithSHAAnd3KeyTripleDESCBC = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 3}
	oidPbeWithSHAAnd40BitRC2CBC      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 6}
	oidKeyBag                        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 1}
	oidPKCS8ShroudedKeyBag           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 2}
	oidCertBag                       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 3}
	oidCRLBag                        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 4}
	oidSecretBag                     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 5}
	oidSHA1                          = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidSHA256                        = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidHMACWithSHA1                  = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 7}
	oidHMACWithSHA256                = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}
	oidPBKDF2                        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}
	oidPBES2                         = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
	oidAES256CBC                     = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
)

// AlgorithmKind discriminates the AlgorithmIdentifier tagged union.
type AlgorithmKind int

const (
	AlgUnknown AlgorithmKind = iota
	AlgSha1
	AlgSha2
	AlgHmacWithSha1
	AlgHmacWithSha256
	AlgPbeWithSHAAnd40BitRC2CBC
	AlgPbeWithSHAAnd3KeyTripleDESCBC
	AlgPbes2
	AlgPbkdf2
	AlgAesCbcPad
	AlgOther
)

// Pkcs12PbeParams carries the salt/iteration-count pair for the two legacy
// PKCS12-SHA-based PBE schemes.
type Pkcs12PbeParams struct {
	Salt       []byte
	Iterations int64
}

// Pkcs12Pbes2Params is the parameter set of the PBES2 scheme: a KDF
// AlgorithmIdentifier (constrained to Pbkdf2 during decrypt) and an
// encryption-scheme AlgorithmIdentifier (constrained to AesCbcPad).
type Pkcs12Pbes2Params struct {
	KeyDerivationFunc AlgorithmIdentifier
	EncryptionScheme  AlgorithmIdentifier
}

// Pbkdf2SaltKind distinguishes the two arms of the Pbkdf2Salt CHOICE.
type Pbkdf2SaltKind int

const (
	Pbkdf2SaltSpecified Pbkdf2SaltKind = iota
	Pbkdf2SaltOtherSource
)

// Pbkdf2Salt is CHOICE { specified OCTET STRING, otherSource AlgorithmIdentifier }.
// Only Specified is derivable; OtherSource is preserved for round-trip.
type Pbkdf2Salt struct {
	Kind        Pbkdf2SaltKind
	Specified   []byte
	OtherSource AlgorithmIdentifier
}

// Pbkdf2Params is the PBKDF2 parameter set. PRF defaults to HmacWithSha1 and
// KeyLength defaults to 32 when absent from the DER, per RFC 8018.
type Pbkdf2Params struct {
	Salt           Pbkdf2Salt
	IterationCount int64
	KeyLength      int64 // 0 means "absent", resolved to 32 by callers
	PRF            AlgorithmIdentifier
	HasPRF         bool
}

// AlgorithmIdentifier is the tagged union over every algorithm OID this
// library recognizes, plus an AlgOther escape that preserves the OID and raw
// parameter DER of anything else so the tree round-trips losslessly.
type AlgorithmIdentifier struct {
	Kind AlgorithmKind

	PBEParams    Pkcs12PbeParams
	PBES2Params  Pkcs12Pbes2Params
	PBKDF2Params Pbkdf2Params
	IV           []byte // AlgAesCbcPad

	// HmacWithSha1/HmacWithSha256 carry an optional opaque parameter blob.
	RawParams    []byte
	HasRawParams bool

	// AlgOther.
	OID         asn1.ObjectIdentifier
	RawParamDER []byte
	HasParamDER bool
}

// wireAlgorithmIdentifier is the flat ASN.1 SEQUENCE { algorithm, parameters
// OPTIONAL } shape every AlgorithmIdentifier variant shares on the wire.
type wireAlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue         `asn1:"optional"`
}

func (a *AlgorithmIdentifier) parse(der []byte) error {
	var wire wireAlgorithmIdentifier
	if err := unmarshalExact("algorithm identifier", der, &wire); err != nil {
		return err
	}

	hasParams := len(wire.Parameters.FullBytes) > 0

	switch {
	case wire.Algorithm.Equal(oidSHA1):
		a.Kind = AlgSha1
	case wire.Algorithm.Equal(oidSHA256):
		a.Kind = AlgSha2
	case wire.Algorithm.Equal(oidHMACWithSHA1):
		a.Kind = AlgHmacWithSha1
		a.RawParams, a.HasRawParams = wire.Parameters.FullBytes, hasParams
	case wire.Algorithm.Equal(oidHMACWithSHA256):
		a.Kind = AlgHmacWithSha256
		a.RawParams, a.HasRawParams = wire.Parameters.FullBytes, hasParams
	case wire.Algorithm.Equal(oidPbeWithSHAAnd40BitRC2CBC):
		a.Kind = AlgPbeWithSHAAnd40BitRC2CBC
		if err := unmarshalExact("pbe params", wire.Parameters.FullBytes, &a.PBEParams); err != nil {
			return err
		}
	case wire.Algorithm.Equal(oidPbeWithSHAAnd3KeyTripleDESCBC):
		a.Kind = AlgPbeWithSHAAnd3KeyTripleDESCBC
		if err := unmarshalExact("pbe params", wire.Parameters.FullBytes, &a.PBEParams); err != nil {
			return err
		}
	case wire.Algorithm.Equal(oidPBES2):
		a.Kind = AlgPbes2
		if err := parsePbes2Params(&a.PBES2Params, wire.Parameters.FullBytes); err != nil {
			return err
		}
	case wire.Algorithm.Equal(oidPBKDF2):
		a.Kind = AlgPbkdf2
		if err := parsePbkdf2Params(&a.PBKDF2Params, wire.Parameters.FullBytes); err != nil {
			return err
		}
	case wire.Algorithm.Equal(oidAES256CBC):
		a.Kind = AlgAesCbcPad
		var iv []byte
		if err := unmarshalExact("aes-cbc-pad iv", wire.Parameters.FullBytes, &iv); err != nil {
			return err
		}
		a.IV = iv
	default:
		a.Kind = AlgOther
		a.OID = wire.Algorithm
		a.RawParamDER, a.HasParamDER = wire.Parameters.FullBytes, hasParams
	}

	return nil
}

func (a *AlgorithmIdentifier) marshal() []byte {
	wire := wireAlgorithmIdentifier{}

	switch a.Kind {
	case AlgSha1:
		wire.Algorithm = oidSHA1
		wire.Parameters = asn1.RawValue{FullBytes: nullParameters}
	case AlgSha2:
		wire.Algorithm = oidSHA256
		wire.Parameters = asn1.RawValue{FullBytes: nullParameters}
	case AlgHmacWithSha1, AlgHmacWithSha256:
		if a.Kind == AlgHmacWithSha1 {
			wire.Algorithm = oidHMACWithSHA1
		} else {
			wire.Algorithm = oidHMACWithSHA256
		}
		if a.HasRawParams {
			wire.Parameters = asn1.RawValue{FullBytes: a.RawParams}
		}
	case AlgPbeWithSHAAnd40BitRC2CBC, AlgPbeWithSHAAnd3KeyTripleDESCBC:
		if a.Kind == AlgPbeWithSHAAnd40BitRC2CBC {
			wire.Algorithm = oidPbeWithSHAAnd40BitRC2CBC
		} else {
			wire.Algorithm = oidPbeWithSHAAnd3KeyTripleDESCBC
		}
		wire.Parameters = asn1.RawValue{FullBytes: marshalOrPanic("pbe params", a.PBEParams)}
	case AlgPbes2:
		wire.Algorithm = oidPBES2
		wire.Parameters = asn1.RawValue{FullBytes: marshalPbes2Params(a.PBES2Params)}
	case AlgPbkdf2:
		wire.Algorithm = oidPBKDF2
		wire.Parameters = asn1.RawValue{FullBytes: marshalPbkdf2Params(a.PBKDF2Params)}
	case AlgAesCbcPad:
		wire.Algorithm = oidAES256CBC
		wire.Parameters = asn1.RawValue{FullBytes: marshalOrPanic("aes-cbc-pad iv", a.IV)}
	case AlgOther:
		wire.Algorithm = a.OID
		if a.HasParamDER {
			wire.Parameters = asn1.RawValue{FullBytes: a.RawParamDER}
		}
	default:
		panic(fmt.Sprintf("pkcs12: marshal: unhandled algorithm kind %d", a.Kind))
	}

	return marshalOrPanic("algorithm identifier", wire)
}

type pbes2ParamsWire struct {
	KeyDerivationFunc wireAlgorithmIdentifier
	EncryptionScheme  wireAlgorithmIdentifier
}

func parsePbes2Params(out *Pkcs12Pbes2Params, der []byte) error {
	var wire pbes2ParamsWire
	if err := unmarshalExact("pbes2 params", der, &wire); err != nil {
		return err
	}
	kdfDER := marshalOrPanic("pbes2 kdf", wire.KeyDerivationFunc)
	if err := out.KeyDerivationFunc.parse(kdfDER); err != nil {
		return err
	}
	schemeDER := marshalOrPanic("pbes2 scheme", wire.EncryptionScheme)
	return out.EncryptionScheme.parse(schemeDER)
}

func marshalPbes2Params(p Pkcs12Pbes2Params) []byte {
	var wire pbes2ParamsWire
	rest, err := asn1.Unmarshal(p.KeyDerivationFunc.marshal(), &wire.KeyDerivationFunc)
	if err != nil || len(rest) != 0 {
		panic("pkcs12: marshal pbes2 kdf: unreachable")
	}
	rest, err = asn1.Unmarshal(p.EncryptionScheme.marshal(), &wire.EncryptionScheme)
	if err != nil || len(rest) != 0 {
		panic("pkcs12: marshal pbes2 scheme: unreachable")
	}
	return marshalOrPanic("pbes2 params", wire)
}

type pbkdf2ParamsWire struct {
	Salt           asn1.RawValue
	IterationCount int64
	KeyLength      int64                   `asn1:"optional"`
	PRF            wireAlgorithmIdentifier `asn1:"optional"`
}

func parsePbkdf2Params(out *Pbkdf2Params, der []byte) error {
	var wire pbkdf2ParamsWire
	if err := unmarshalExact("pbkdf2 params", der, &wire); err != nil {
		return err
	}

	out.IterationCount = wire.IterationCount
	out.KeyLength = wire.KeyLength

	tag, ok := rawTag(wire.Salt.FullBytes)
	if !ok {
		return wrapAsn1Error("pbkdf2 salt", fmt.Errorf("empty salt CHOICE"))
	}
	switch tag {
	case tagOctetString:
		var specified []byte
		if err := unmarshalExact("pbkdf2 specified salt", wire.Salt.FullBytes, &specified); err != nil {
			return err
		}
		out.Salt = Pbkdf2Salt{Kind: Pbkdf2SaltSpecified, Specified: specified}
	default:
		var other AlgorithmIdentifier
		if err := other.parse(wire.Salt.FullBytes); err != nil {
			return err
		}
		out.Salt = Pbkdf2Salt{Kind: Pbkdf2SaltOtherSource, OtherSource: other}
	}

	if len(wire.PRF.Algorithm) > 0 {
		prfDER := marshalOrPanic("pbkdf2 prf", wire.PRF)
		if err := out.PRF.parse(prfDER); err != nil {
			return err
		}
		out.HasPRF = true
	}

	return nil
}

func marshalPbkdf2Params(p Pbkdf2Params) []byte {
	var wire pbkdf2ParamsWire
	wire.IterationCount = p.IterationCount
	wire.KeyLength = p.KeyLength

	switch p.Salt.Kind {
	case Pbkdf2SaltSpecified:
		wire.Salt = asn1.RawValue{FullBytes: marshalOrPanic("pbkdf2 specified salt", p.Salt.Specified)}
	case Pbkdf2SaltOtherSource:
		wire.Salt = asn1.RawValue{FullBytes: p.Salt.OtherSource.marshal()}
	}

	if p.HasPRF {
		rest, err := asn1.Unmarshal(p.PRF.marshal(), &wire.PRF)
		if err != nil || len(rest) != 0 {
			panic("pkcs12: marshal pbkdf2 prf: unreachable")
		}
	}

	return marshalOrPanic("pbkdf2 params", wire)
}

// effectivePRF resolves the PBKDF2 PRF, defaulting to HmacWithSha1 when
// absent from the DER, per RFC 8018.
func (p Pbkdf2Params) effectivePRF() AlgorithmIdentifier {
	if p.HasPRF {
		return p.PRF
	}
	return AlgorithmIdentifier{Kind: AlgHmacWithSha1}
}

// effectiveKeyLength resolves KeyLength, defaulting to 32 bytes when absent.
func (p Pbkdf2Params) effectiveKeyLength() int {
	if p.KeyLength > 0 {
		return int(p.KeyLength)
	}
	return 32
}

// IsLibraryError reports whether err is one of this package's sentinel
// errors, wrapped or not.
func IsLibraryError(err error) bool {
	return cryptoutilLiberr.Is(err)
}
