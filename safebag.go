package pkcs12

import (
	"encoding/asn1"
	"fmt"

	cryptoutilLiberr "cryptoutil/pkcs12/internal/liberr"
)

// SafeBagKindTag discriminates the SafeBagKind tagged union.
type SafeBagKindTag int

const (
	BagPkcs8ShroudedKeyBag SafeBagKindTag = iota
	BagCertBag
	BagOther
)

// SafeBagKind is the payload carried by a SafeBag: a shrouded private key,
// a certificate (or SDSI identity), or an unrecognized bag type preserved
// verbatim.
type SafeBagKind struct {
	Tag SafeBagKindTag

	ShroudedKeyBag EncryptedPrivateKeyInfo // BagPkcs8ShroudedKeyBag
	Cert           CertBag                 // BagCertBag

	OtherOID   asn1.ObjectIdentifier // BagOther
	OtherValue []byte                // BagOther, raw inner DER
}

// EncryptedPrivateKeyInfo wraps a shrouded PKCS#8 private key: the algorithm
// that encrypted it, and the ciphertext. Decrypting yields an opaque PKCS#8
// PrivateKeyInfo DER blob this library never parses further.
type EncryptedPrivateKeyInfo struct {
	EncryptionAlgorithm AlgorithmIdentifier
	EncryptedData       []byte
}

type encryptedPrivateKeyInfoWire struct {
	EncryptionAlgorithm wireAlgorithmIdentifier
	EncryptedData       []byte
}

func (e *EncryptedPrivateKeyInfo) parse(der []byte) error {
	var wire encryptedPrivateKeyInfoWire
	if err := unmarshalExact("encrypted private key info", der, &wire); err != nil {
		return err
	}
	algDER := marshalOrPanic("shrouded key algorithm", wire.EncryptionAlgorithm)
	if err := e.EncryptionAlgorithm.parse(algDER); err != nil {
		return err
	}
	e.EncryptedData = wire.EncryptedData
	return nil
}

func (e *EncryptedPrivateKeyInfo) marshal() []byte {
	var algWire wireAlgorithmIdentifier
	rest, err := asn1.Unmarshal(e.EncryptionAlgorithm.marshal(), &algWire)
	if err != nil || len(rest) != 0 {
		panic("pkcs12: marshal shrouded key algorithm: unreachable")
	}
	wire := encryptedPrivateKeyInfoWire{EncryptionAlgorithm: algWire, EncryptedData: e.EncryptedData}
	return marshalOrPanic("encrypted private key info", wire)
}

// CertBagKind discriminates the CertBag CHOICE.
type CertBagKind int

const (
	CertBagX509 CertBagKind = iota
	CertBagSDSI
)

// CertBag is a certificate payload: either a raw X.509 DER certificate or a
// SDSI identity string.
type CertBag struct {
	Kind CertBagKind
	X509 []byte // CertBagX509
	SDSI string // CertBagSDSI
}

type certBagWire struct {
	CertID   asn1.ObjectIdentifier
	CertData asn1.RawValue `asn1:"tag:0,explicit"`
}

func (c *CertBag) parse(der []byte) error {
	var wire certBagWire
	if err := unmarshalExact("cert bag", der, &wire); err != nil {
		return err
	}
	switch {
	case wire.CertID.Equal(oidCertTypeX509Certificate):
		c.Kind = CertBagX509
		var payload []byte
		if err := unmarshalExact("cert bag x509 payload", wire.CertData.Bytes, &payload); err != nil {
			return err
		}
		c.X509 = payload
	case wire.CertID.Equal(oidCertTypeSDSICertificate):
		c.Kind = CertBagSDSI
		var s string
		if _, err := asn1.UnmarshalWithParams(wire.CertData.Bytes, &s, "ia5"); err != nil {
			return wrapAsn1Error("cert bag sdsi payload", err)
		}
		c.SDSI = s
	default:
		return wrapAsn1Error("cert bag", fmt.Errorf("unrecognized cert type OID %v", wire.CertID))
	}
	return nil
}

func (c *CertBag) marshal() []byte {
	var wire certBagWire
	switch c.Kind {
	case CertBagX509:
		wire.CertID = oidCertTypeX509Certificate
		wire.CertData = asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      marshalOrPanic("cert bag x509 payload", c.X509),
		}
	case CertBagSDSI:
		wire.CertID = oidCertTypeSDSICertificate
		inner, err := asn1.MarshalWithParams(c.SDSI, "ia5")
		if err != nil {
			panic(fmt.Sprintf("pkcs12: marshal cert bag sdsi payload: %v", err))
		}
		wire.CertData = asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: inner}
	default:
		panic(fmt.Sprintf("pkcs12: marshal: unhandled cert bag kind %d", c.Kind))
	}
	return marshalOrPanic("cert bag", wire)
}

func (s *SafeBagKind) parse(oid asn1.ObjectIdentifier, valueDER []byte) error {
	switch {
	case oid.Equal(oidPKCS8ShroudedKeyBag):
		s.Tag = BagPkcs8ShroudedKeyBag
		return s.ShroudedKeyBag.parse(valueDER)
	case oid.Equal(oidCertBag):
		s.Tag = BagCertBag
		return s.Cert.parse(valueDER)
	default:
		s.Tag = BagOther
		s.OtherOID = oid
		s.OtherValue = valueDER
		return nil
	}
}

func (s *SafeBagKind) oidAndValue() (asn1.ObjectIdentifier, []byte) {
	switch s.Tag {
	case BagPkcs8ShroudedKeyBag:
		return oidPKCS8ShroudedKeyBag, s.ShroudedKeyBag.marshal()
	case BagCertBag:
		return oidCertBag, s.Cert.marshal()
	case BagOther:
		return s.OtherOID, s.OtherValue
	default:
		panic(fmt.Sprintf("pkcs12: marshal: unhandled safe bag kind %d", s.Tag))
	}
}

// PKCS12AttributeKind discriminates the PKCS12Attribute tagged union.
type PKCS12AttributeKind int

const (
	AttrFriendlyName PKCS12AttributeKind = iota
	AttrLocalKeyID
	AttrOther
)

// PKCS12Attribute is one entry of a SafeBag's attribute SET.
type PKCS12Attribute struct {
	Kind PKCS12AttributeKind

	FriendlyName string // AttrFriendlyName
	LocalKeyID   []byte // AttrLocalKeyID

	OtherOID    asn1.ObjectIdentifier // AttrOther
	OtherValues []asn1.RawValue       // AttrOther, the raw SET OF values
}

type attributeWire struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue       `asn1:"set"`
}

func (a *PKCS12Attribute) parse(der []byte) error {
	var wire attributeWire
	if err := unmarshalExact("attribute", der, &wire); err != nil {
		return err
	}
	if len(wire.Values) == 0 {
		switch {
		case wire.Type.Equal(oidFriendlyName), wire.Type.Equal(oidLocalKeyID):
			return cryptoutilLiberr.ErrAttributeSetEmpty
		}
	}

	switch {
	case wire.Type.Equal(oidFriendlyName):
		a.Kind = AttrFriendlyName
		s, err := parseBMPValue(wire.Values[0].FullBytes)
		if err != nil {
			return err
		}
		a.FriendlyName = s
	case wire.Type.Equal(oidLocalKeyID):
		a.Kind = AttrLocalKeyID
		var b []byte
		if err := unmarshalExact("local key id attribute", wire.Values[0].FullBytes, &b); err != nil {
			return err
		}
		a.LocalKeyID = b
	default:
		a.Kind = AttrOther
		a.OtherOID = wire.Type
		a.OtherValues = wire.Values
	}
	return nil
}

func (a *PKCS12Attribute) marshal() []byte {
	var wire attributeWire
	switch a.Kind {
	case AttrFriendlyName:
		wire.Type = oidFriendlyName
		v, err := marshalBMPValue(a.FriendlyName)
		if err != nil {
			panic(fmt.Sprintf("pkcs12: marshal friendly name: %v", err))
		}
		wire.Values = []asn1.RawValue{{FullBytes: v}}
	case AttrLocalKeyID:
		wire.Type = oidLocalKeyID
		wire.Values = []asn1.RawValue{{FullBytes: marshalOrPanic("local key id", a.LocalKeyID)}}
	case AttrOther:
		wire.Type = a.OtherOID
		wire.Values = a.OtherValues
	default:
		panic(fmt.Sprintf("pkcs12: marshal: unhandled attribute kind %d", a.Kind))
	}
	return marshalOrPanic("attribute", wire)
}

// SafeBag pairs a SafeBagKind payload with its attribute SET (order is not
// semantic, per the ASN.1 SET OF grammar).
type SafeBag struct {
	Bag        SafeBagKind
	Attributes []PKCS12Attribute
}

type safeBagWire struct {
	BagID      asn1.ObjectIdentifier
	BagValue   asn1.RawValue         `asn1:"tag:0,explicit"`
	Attributes []asn1.RawValue       `asn1:"set,optional"`
}

func (s *SafeBag) parse(der []byte) error {
	var wire safeBagWire
	if err := unmarshalExact("safe bag", der, &wire); err != nil {
		return err
	}
	if err := s.Bag.parse(wire.BagID, wire.BagValue.Bytes); err != nil {
		return err
	}
	s.Attributes = make([]PKCS12Attribute, 0, len(wire.Attributes))
	for _, raw := range wire.Attributes {
		var attr PKCS12Attribute
		if err := attr.parse(raw.FullBytes); err != nil {
			return err
		}
		s.Attributes = append(s.Attributes, attr)
	}
	return nil
}

func (s *SafeBag) marshal() []byte {
	oid, value := s.Bag.oidAndValue()
	wire := safeBagWire{
		BagID:    oid,
		BagValue: asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: value},
	}
	for _, attr := range s.Attributes {
		wire.Attributes = append(wire.Attributes, asn1.RawValue{FullBytes: attr.marshal()})
	}
	return marshalOrPanic("safe bag", wire)
}

// FriendlyName returns the bag's FriendlyName attribute, if any.
func (s *SafeBag) FriendlyName() (string, bool) {
	for _, attr := range s.Attributes {
		if attr.Kind == AttrFriendlyName {
			return attr.FriendlyName, true
		}
	}
	return "", false
}

// LocalKeyID returns the bag's LocalKeyId attribute, if any.
func (s *SafeBag) LocalKeyID() ([]byte, bool) {
	for _, attr := range s.Attributes {
		if attr.Kind == AttrLocalKeyID {
			return attr.LocalKeyID, true
		}
	}
	return nil, false
}
