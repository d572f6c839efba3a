package pkcs12

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/asn1"
	"fmt"
	"hash"

	cryptoutilLiberr "cryptoutil/pkcs12/internal/liberr"
)

// DigestInfo names the digest algorithm (Sha1 or Sha2) a MacData value was
// computed with, and carries the digest (the HMAC tag) itself.
type DigestInfo struct {
	DigestAlgorithm AlgorithmIdentifier
	Digest          []byte
}

type digestInfoWire struct {
	DigestAlgorithm wireAlgorithmIdentifier
	Digest          []byte
}

func (d *DigestInfo) parse(der []byte) error {
	var wire digestInfoWire
	if err := unmarshalExact("digest info", der, &wire); err != nil {
		return err
	}
	algDER := marshalOrPanic("digest algorithm", wire.DigestAlgorithm)
	if err := d.DigestAlgorithm.parse(algDER); err != nil {
		return err
	}
	d.Digest = wire.Digest
	return nil
}

func (d *DigestInfo) marshal() []byte {
	var algWire wireAlgorithmIdentifier
	rest, err := asn1.Unmarshal(d.DigestAlgorithm.marshal(), &algWire)
	if err != nil || len(rest) != 0 {
		panic("pkcs12: marshal digest algorithm: unreachable")
	}
	return marshalOrPanic("digest info", digestInfoWire{DigestAlgorithm: algWire, Digest: d.Digest})
}

// MacData is the outer integrity structure: an HMAC over the authSafe
// content, keyed by a PKCS12-SHA-derived key.
type MacData struct {
	Mac        DigestInfo
	MacSalt    []byte
	Iterations int64 // ASN.1 default is 1 when absent
}

type macDataWire struct {
	Mac        digestInfoWire
	MacSalt    []byte
	Iterations int64          `asn1:"optional,default:1"`
}

func (m *MacData) parse(der []byte) error {
	var wire macDataWire
	if err := unmarshalExact("mac data", der, &wire); err != nil {
		return err
	}
	macDER := marshalOrPanic("mac digest info", wire.Mac)
	if err := m.Mac.parse(macDER); err != nil {
		return err
	}
	m.MacSalt = wire.MacSalt
	m.Iterations = wire.Iterations
	return nil
}

func (m *MacData) marshal() []byte {
	var macWire digestInfoWire
	rest, err := asn1.Unmarshal(m.Mac.marshal(), &macWire)
	if err != nil || len(rest) != 0 {
		panic("pkcs12: marshal mac digest info: unreachable")
	}
	return marshalOrPanic("mac data", macDataWire{Mac: macWire, MacSalt: m.MacSalt, Iterations: m.Iterations})
}

// macHashForAlgorithm resolves a DigestInfo's algorithm to a newHash
// constructor and the PKCS12-SHA MAC-key length RFC 7292 specifies for it
// (20 bytes for SHA-1, 32 for SHA-256).
func macHashForAlgorithm(alg AlgorithmIdentifier) (newHash func() hash.Hash, keyLen int, ok bool) {
	switch alg.Kind {
	case AlgSha1:
		return sha1.New, 20, true
	case AlgSha2:
		return sha256.New, 32, true
	default:
		return nil, 0, false
	}
}

// computeMac derives the MAC key via PKCS12-SHA (id=3) and returns
// HMAC(key, authSafeBody) under the digest algorithm m.Mac.DigestAlgorithm
// names. password must already be BMPString-encoded.
func (m *MacData) computeMac(authSafeBody, bmpPassword []byte) ([]byte, error) {
	newHash, keyLen, ok := macHashForAlgorithm(m.Mac.DigestAlgorithm)
	if !ok {
		return nil, fmt.Errorf("%w: mac digest algorithm", cryptoutilLiberr.ErrUnsupportedAlgorithm)
	}
	iterations := m.Iterations
	if iterations == 0 {
		iterations = 1
	}
	key := pbepkcs12sha(newHash, bmpPassword, m.MacSalt, uint64(iterations), pbeIDMACKey, keyLen)

	mac := hmac.New(newHash, key)
	mac.Write(authSafeBody)
	return mac.Sum(nil), nil
}

// verify reports whether password (BMP-encoded) reproduces this MacData's
// digest over authSafeBody, compared in constant time.
func (m *MacData) verify(authSafeBody, bmpPassword []byte) bool {
	computed, err := m.computeMac(authSafeBody, bmpPassword)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(computed, m.Mac.Digest) == 1
}

// newMacData builds a MacData over authSafeBody using an 8-byte random salt,
// 2048 PKCS12-SHA iterations, and HMAC-SHA-1.
func newMacData(authSafeBody, bmpPassword []byte, randRead func([]byte) error) (MacData, error) {
	salt := make([]byte, 8)
	if err := randRead(salt); err != nil {
		return MacData{}, err
	}

	m := MacData{
		Mac:        DigestInfo{DigestAlgorithm: AlgorithmIdentifier{Kind: AlgSha1}},
		MacSalt:    salt,
		Iterations: 2048,
	}
	digest, err := m.computeMac(authSafeBody, bmpPassword)
	if err != nil {
		return MacData{}, err
	}
	m.Mac.Digest = digest
	return m, nil
}
