package pkcs12

import (
	"encoding/asn1"
	"fmt"
)

// ContentInfoKind discriminates the ContentInfo tagged union.
type ContentInfoKind int

const (
	ContentInfoData ContentInfoKind = iota
	ContentInfoEncryptedData
	ContentInfoOther
)

// ContentInfo is CHOICE-like over three outer content types: opaque Data,
// EncryptedData, and an OtherContext escape preserving unknown content
// types verbatim for lossless round-trip.
type ContentInfo struct {
	Kind ContentInfoKind

	Data          []byte        // ContentInfoData
	EncryptedData EncryptedData // ContentInfoEncryptedData

	OtherContentType asn1.ObjectIdentifier // ContentInfoOther
	OtherRawDER      []byte                // ContentInfoOther, full explicit [0] content
}

type contentInfoWire struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"tag:0,explicit,optional"`
}

func (c *ContentInfo) parse(der []byte) error {
	var wire contentInfoWire
	if err := unmarshalExact("content info", der, &wire); err != nil {
		return err
	}

	switch {
	case wire.ContentType.Equal(oidData):
		c.Kind = ContentInfoData
		var payload []byte
		if err := unmarshalExact("content info data", wire.Content.Bytes, &payload); err != nil {
			return err
		}
		c.Data = payload
	case wire.ContentType.Equal(oidEncryptedData):
		c.Kind = ContentInfoEncryptedData
		if err := c.EncryptedData.parse(wire.Content.Bytes); err != nil {
			return err
		}
	default:
		c.Kind = ContentInfoOther
		c.OtherContentType = wire.ContentType
		c.OtherRawDER = wire.Content.Bytes
	}

	return nil
}

func (c *ContentInfo) marshal() []byte {
	var wire contentInfoWire

	switch c.Kind {
	case ContentInfoData:
		wire.ContentType = oidData
		wire.Content = asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      marshalOrPanic("content info data payload", c.Data),
		}
	case ContentInfoEncryptedData:
		wire.ContentType = oidEncryptedData
		wire.Content = asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      c.EncryptedData.marshal(),
		}
	case ContentInfoOther:
		wire.ContentType = c.OtherContentType
		wire.Content = asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      c.OtherRawDER,
		}
	default:
		panic(fmt.Sprintf("pkcs12: marshal: unhandled content info kind %d", c.Kind))
	}

	return marshalOrPanic("content info", wire)
}

// EncryptedData wraps an EncryptedContentInfo behind a version field that is
// always 0 on values this library writes.
type EncryptedData struct {
	Version              int
	EncryptedContentInfo EncryptedContentInfo
}

type encryptedDataWire struct {
	Version              int
	EncryptedContentInfo encryptedContentInfoWire
}

func (e *EncryptedData) parse(der []byte) error {
	var wire encryptedDataWire
	if err := unmarshalExact("encrypted data", der, &wire); err != nil {
		return err
	}
	e.Version = wire.Version
	return e.EncryptedContentInfo.fromWire(wire.EncryptedContentInfo)
}

func (e *EncryptedData) marshal() []byte {
	wire := encryptedDataWire{
		Version:              0,
		EncryptedContentInfo: e.EncryptedContentInfo.toWire(),
	}
	return marshalOrPanic("encrypted data", wire)
}

// EncryptedContentInfo is the encrypted payload of a bag bundle: the inner
// content type (always Data for PKCS#12's purposes), the algorithm that
// encrypted it, and the ciphertext itself.
type EncryptedContentInfo struct {
	ContentEncryptionAlgorithm AlgorithmIdentifier
	EncryptedContent           []byte
}

type encryptedContentInfoWire struct {
	ContentType                asn1.ObjectIdentifier
	ContentEncryptionAlgorithm wireAlgorithmIdentifier
	EncryptedContent           asn1.RawValue `asn1:"tag:0,optional"`
}

func (e *EncryptedContentInfo) fromWire(wire encryptedContentInfoWire) error {
	algDER := marshalOrPanic("content encryption algorithm", wire.ContentEncryptionAlgorithm)
	if err := e.ContentEncryptionAlgorithm.parse(algDER); err != nil {
		return err
	}
	e.EncryptedContent = wire.EncryptedContent.Bytes
	return nil
}

func (e *EncryptedContentInfo) toWire() encryptedContentInfoWire {
	var algWire wireAlgorithmIdentifier
	rest, err := asn1.Unmarshal(e.ContentEncryptionAlgorithm.marshal(), &algWire)
	if err != nil || len(rest) != 0 {
		panic("pkcs12: marshal content encryption algorithm: unreachable")
	}
	return encryptedContentInfoWire{
		ContentType:                 oidData,
		ContentEncryptionAlgorithm: algWire,
		EncryptedContent: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: false,
			Bytes:      e.EncryptedContent,
		},
	}
}
