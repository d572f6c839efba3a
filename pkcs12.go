// Package pkcs12 reads and writes PKCS#12 (PFX) exchange files: binary
// containers bundling X.509 certificates with their private keys under
// password-based protection, per RFC 7292.
package pkcs12

import (
	"crypto/sha1"
	"encoding/asn1"
	"fmt"

	cryptoutilLiberr "cryptoutil/pkcs12/internal/liberr"
)

// PFX is the top-level PKCS#12 container: an authSafe content info plus an
// optional integrity MAC. Values produced by New/NewWithCAs always set
// Version to 3, wrap AuthSafe as Data over a SEQUENCE OF ContentInfo, and
// carry a MacData.
type PFX struct {
	Version  int
	AuthSafe ContentInfo
	MacData  *MacData
}

type pfxWireParse struct {
	Version  int
	AuthSafe asn1.RawValue
	MacData  asn1.RawValue `asn1:"optional"`
}

type pfxWireWithMac struct {
	Version  int
	AuthSafe asn1.RawValue
	MacData  asn1.RawValue
}

type pfxWireNoMac struct {
	Version  int
	AuthSafe asn1.RawValue
}

// Parse decodes der as a PFX, BER-tolerant (indefinite lengths and
// non-minimal encodings accepted). It does not attempt any decryption; call
// VerifyMAC/Bags/KeyBags/CertX509Bags/CertSDSIBags for that.
func Parse(der []byte) (*PFX, error) {
	der, err := berToDER(der)
	if err != nil {
		return nil, err
	}

	var wire pfxWireParse
	if err := unmarshalExact("pfx", der, &wire); err != nil {
		return nil, err
	}

	pfx := &PFX{Version: wire.Version}
	if err := pfx.AuthSafe.parse(wire.AuthSafe.FullBytes); err != nil {
		return nil, err
	}
	if len(wire.MacData.FullBytes) > 0 {
		var md MacData
		if err := md.parse(wire.MacData.FullBytes); err != nil {
			return nil, err
		}
		pfx.MacData = &md
	}
	return pfx, nil
}

// ToDER serializes the PFX as minimal, definite-length DER.
func (p *PFX) ToDER() []byte {
	authSafeDER := p.AuthSafe.marshal()
	if p.MacData == nil {
		return marshalOrPanic("pfx", pfxWireNoMac{
			Version:  p.Version,
			AuthSafe: asn1.RawValue{FullBytes: authSafeDER},
		})
	}
	return marshalOrPanic("pfx", pfxWireWithMac{
		Version:  p.Version,
		AuthSafe: asn1.RawValue{FullBytes: authSafeDER},
		MacData:  asn1.RawValue{FullBytes: p.MacData.marshal()},
	})
}

// authSafeBody returns the opaque content of the outer authSafe
// ContentInfo. For a well-formed PFX this is always Data wrapping the DER
// of a SEQUENCE OF ContentInfo.
func (p *PFX) authSafeBody() ([]byte, error) {
	if p.AuthSafe.Kind != ContentInfoData {
		return nil, fmt.Errorf("%w: auth safe is not Data", cryptoutilLiberr.ErrAsn1Invalid)
	}
	return p.AuthSafe.Data, nil
}

// VerifyMAC reports whether password reproduces the stored MAC over the
// authSafe content. Returns true when no MacData is present (nothing to
// verify), and false on any structural problem rather than propagating an
// error.
func (p *PFX) VerifyMAC(password string) bool {
	if p.MacData == nil {
		return true
	}
	body, err := p.authSafeBody()
	if err != nil {
		return false
	}
	bmpPassword, ok := bmpString(password)
	if !ok {
		return false
	}
	return p.MacData.verify(body, bmpPassword)
}

// Bags decodes every SafeBag reachable from the authSafe content: for each
// inner ContentInfo (decrypting EncryptedData ones with password), parse
// its payload as a SEQUENCE OF SafeBag and concatenate in encounter order.
func (p *PFX) Bags(password string) ([]SafeBag, error) {
	body, err := p.authSafeBody()
	if err != nil {
		return nil, err
	}
	body, err = berToDER(body)
	if err != nil {
		return nil, err
	}

	var innerInfos []asn1.RawValue
	if err := unmarshalExact("auth safe body", body, &innerInfos); err != nil {
		return nil, err
	}

	var bags []SafeBag
	for _, raw := range innerInfos {
		var ci ContentInfo
		if err := ci.parse(raw.FullBytes); err != nil {
			return nil, err
		}

		plaintext, err := ci.decryptedData(password)
		if err != nil {
			return nil, err
		}
		plaintext, err = berToDER(plaintext)
		if err != nil {
			return nil, err
		}

		var bagDERs []asn1.RawValue
		if err := unmarshalExact("safe contents", plaintext, &bagDERs); err != nil {
			return nil, err
		}
		for _, bagDER := range bagDERs {
			var bag SafeBag
			if err := bag.parse(bagDER.FullBytes); err != nil {
				return nil, err
			}
			bags = append(bags, bag)
		}
	}

	return bags, nil
}

// decryptedData resolves a ContentInfo to its plaintext payload: opaque
// bytes for Data, or the result of PBE/PBES2 decryption for EncryptedData.
func (c *ContentInfo) decryptedData(password string) ([]byte, error) {
	switch c.Kind {
	case ContentInfoData:
		return c.Data, nil
	case ContentInfoEncryptedData:
		return decryptEncryptedContentInfo(c.EncryptedData.EncryptedContentInfo, password)
	default:
		return nil, fmt.Errorf("%w: unrecognized content type", cryptoutilLiberr.ErrUnsupportedAlgorithm)
	}
}

// decryptEncryptedContentInfo dispatches to the PBE engine named by alg,
// BMP-encoding the password for the legacy schemes and passing it raw UTF-8
// for PBES2. Callers always hand over the plain password string; the
// encoding is chosen from the algorithm identifier. Every failure (wrong
// password, bad padding, unsupported algorithm or parameters) is reported
// as the same ErrDecryptFailure.
func decryptEncryptedContentInfo(eci EncryptedContentInfo, password string) ([]byte, error) {
	alg := eci.ContentEncryptionAlgorithm
	var plaintext []byte
	var err error
	switch alg.Kind {
	case AlgPbeWithSHAAnd40BitRC2CBC:
		bmpPassword, ok := bmpString(password)
		if !ok {
			return nil, cryptoutilLiberr.ErrDecryptFailure
		}
		plaintext, err = decryptPbeWithSHAAnd40BitRC2CBC(bmpPassword, alg.PBEParams, eci.EncryptedContent)
	case AlgPbeWithSHAAnd3KeyTripleDESCBC:
		bmpPassword, ok := bmpString(password)
		if !ok {
			return nil, cryptoutilLiberr.ErrDecryptFailure
		}
		plaintext, err = decryptPbeWithSHAAnd3KeyTripleDESCBC(bmpPassword, alg.PBEParams, eci.EncryptedContent)
	case AlgPbes2:
		plaintext, err = decryptPbes2(alg.PBES2Params, []byte(password), eci.EncryptedContent)
	default:
		return nil, cryptoutilLiberr.ErrDecryptFailure
	}
	if err != nil {
		return nil, cryptoutilLiberr.ErrDecryptFailure
	}
	return plaintext, nil
}

// decryptShroudedKey decrypts a Pkcs8ShroudedKeyBag's EncryptedPrivateKeyInfo
// the same way decryptEncryptedContentInfo does for bag bundles.
func decryptShroudedKey(info EncryptedPrivateKeyInfo, password string) ([]byte, error) {
	return decryptEncryptedContentInfo(EncryptedContentInfo{
		ContentEncryptionAlgorithm: info.EncryptionAlgorithm,
		EncryptedContent:           info.EncryptedData,
	}, password)
}

// CertX509Bags returns the DER of every X.509 certificate bag, in
// encounter order.
func (p *PFX) CertX509Bags(password string) ([][]byte, error) {
	bags, err := p.Bags(password)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for _, b := range bags {
		if b.Bag.Tag == BagCertBag && b.Bag.Cert.Kind == CertBagX509 {
			out = append(out, b.Bag.Cert.X509)
		}
	}
	return out, nil
}

// CertBags is an alias for CertX509Bags, kept for callers used to the
// original library's naming.
func (p *PFX) CertBags(password string) ([][]byte, error) {
	return p.CertX509Bags(password)
}

// CertSDSIBags returns the value of every SDSI certificate bag, in
// encounter order.
func (p *PFX) CertSDSIBags(password string) ([]string, error) {
	bags, err := p.Bags(password)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, b := range bags {
		if b.Bag.Tag == BagCertBag && b.Bag.Cert.Kind == CertBagSDSI {
			out = append(out, b.Bag.Cert.SDSI)
		}
	}
	return out, nil
}

// KeyBags returns the decrypted PKCS#8 PrivateKeyInfo DER of every shrouded
// key bag, in encounter order.
func (p *PFX) KeyBags(password string) ([][]byte, error) {
	bags, err := p.Bags(password)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for _, b := range bags {
		if b.Bag.Tag != BagPkcs8ShroudedKeyBag {
			continue
		}
		key, err := decryptShroudedKey(b.Bag.ShroudedKeyBag, password)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}

// New builds a PFX from a single certificate, its private key, and an
// optional CA chain, under the given password and friendly name, using the
// supplied encryptor and key deriver pair (NewModernEncryptor +
// NewPBKDF2KeyDeriver, or NewLegacyEncryptor + NewLegacyKeyDeriver).
func New(certDER, keyDER []byte, caDERs [][]byte, password, friendlyName string, encryptor DataEncryptor, deriver KeyDeriver, rnd RandRead) (*PFX, error) {
	return newPFX(certDER, keyDER, caDERs, password, friendlyName, encryptor, deriver, rnd)
}

// NewWithCAs is an alias for New kept for symmetry with the original
// library's two-constructor surface (New accepted only a single CA there);
// this port's New already accepts a CA slice, so the two are identical.
func NewWithCAs(certDER, keyDER []byte, caDERs [][]byte, password, friendlyName string, encryptor DataEncryptor, deriver KeyDeriver, rnd RandRead) (*PFX, error) {
	return newPFX(certDER, keyDER, caDERs, password, friendlyName, encryptor, deriver, rnd)
}

func newPFX(certDER, keyDER []byte, caDERs [][]byte, password, friendlyName string, encryptor DataEncryptor, deriver KeyDeriver, rnd RandRead) (*PFX, error) {
	if _, ok := bmpString(friendlyName); !ok {
		return nil, wrapAsn1Error("friendly name", fmt.Errorf("not representable as BMPString"))
	}

	localKeyID := sha1Sum(certDER)

	certBags := make([]SafeBag, 0, 1+len(caDERs))
	certBags = append(certBags, SafeBag{
		Bag: SafeBagKind{Tag: BagCertBag, Cert: CertBag{Kind: CertBagX509, X509: certDER}},
		Attributes: []PKCS12Attribute{
			{Kind: AttrFriendlyName, FriendlyName: friendlyName},
			{Kind: AttrLocalKeyID, LocalKeyID: localKeyID},
		},
	})
	for _, ca := range caDERs {
		certBags = append(certBags, SafeBag{
			Bag: SafeBagKind{Tag: BagCertBag, Cert: CertBag{Kind: CertBagX509, X509: ca}},
		})
	}

	certsEncryptionPassword, err := encryptorPassword(encryptor, password)
	if err != nil {
		return nil, err
	}
	certsDER := marshalSafeBags(certBags)
	eci, ok := encryptor.Encrypt(certsDER, certsEncryptionPassword, deriver)
	if !ok {
		return nil, cryptoutilLiberr.ErrDecryptFailure
	}
	encryptedCertsInfo := ContentInfo{
		Kind:          ContentInfoEncryptedData,
		EncryptedData: EncryptedData{Version: 0, EncryptedContentInfo: eci},
	}

	var keyBags []SafeBag
	if len(keyDER) > 0 {
		keyEncryptionPassword, err := encryptorPassword(encryptor, password)
		if err != nil {
			return nil, err
		}
		shrouded, ok := encryptor.EncryptKeyBag(keyDER, keyEncryptionPassword, deriver)
		if !ok {
			return nil, cryptoutilLiberr.ErrDecryptFailure
		}
		keyBags = append(keyBags, SafeBag{
			Bag: shrouded,
			Attributes: []PKCS12Attribute{
				{Kind: AttrFriendlyName, FriendlyName: friendlyName},
				{Kind: AttrLocalKeyID, LocalKeyID: localKeyID},
			},
		})
	}
	keysInfo := ContentInfo{Kind: ContentInfoData, Data: marshalSafeBags(keyBags)}

	authSafeBody := marshalContentInfos([]ContentInfo{encryptedCertsInfo, keysInfo})

	bmpPassword, ok := bmpString(password)
	if !ok {
		return nil, fmt.Errorf("%w: password is not representable as BMPString", cryptoutilLiberr.ErrUnsupportedAlgorithm)
	}
	macData, err := newMacData(authSafeBody, bmpPassword, rnd)
	if err != nil {
		return nil, err
	}

	return &PFX{
		Version:  3,
		AuthSafe: ContentInfo{Kind: ContentInfoData, Data: authSafeBody},
		MacData:  &macData,
	}, nil
}

// encryptorPassword picks the encoding New's caller-visible password
// string needs for a given encryptor: BMP-encoded for the legacy pair
// (which drives PKCS12-SHA internally), raw UTF-8 for anything else
// (the modern PBKDF2/AES pair).
func encryptorPassword(encryptor DataEncryptor, password string) ([]byte, error) {
	if _, ok := encryptor.(*legacyDataEncryptor); ok {
		bmpPassword, ok := bmpString(password)
		if !ok {
			return nil, fmt.Errorf("%w: password is not representable as BMPString", cryptoutilLiberr.ErrUnsupportedAlgorithm)
		}
		return bmpPassword, nil
	}
	return []byte(password), nil
}

func sha1Sum(data []byte) []byte {
	h := sha1.Sum(data)
	return h[:]
}

func marshalSafeBags(bags []SafeBag) []byte {
	raws := make([]asn1.RawValue, len(bags))
	for i, b := range bags {
		raws[i] = asn1.RawValue{FullBytes: b.marshal()}
	}
	return marshalOrPanic("safe contents", raws)
}

func marshalContentInfos(infos []ContentInfo) []byte {
	raws := make([]asn1.RawValue, len(infos))
	for i, ci := range infos {
		raws[i] = asn1.RawValue{FullBytes: ci.marshal()}
	}
	return marshalOrPanic("auth safe body", raws)
}
