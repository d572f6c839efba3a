package pkcs12

import (
	"crypto/aes"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// RandRead produces exactly len(p) cryptographically secure random bytes
// into p, the single non-pure capability this package's builder side needs.
// A seeded implementation makes builds reproducible in tests.
type RandRead func(p []byte) error

// KeyDeriver produces the key a DataEncryptor uses to wrap a key bag, and
// reports the AlgorithmIdentifier a parser would need to rederive it.
// DeriveKey draws fresh derivation parameters (salt) on every call, so each
// encrypted structure in a PFX carries its own; Algorithm reports the
// parameters of the most recent DeriveKey call. Concrete implementations:
// the PBKDF2 deriver (modern pair) and a no-op legacy deriver whose
// DeriveKey always fails, because the legacy DataEncryptor derives its own
// PKCS12-SHA key internally per bag instead of delegating to a shared
// KeyDeriver.
type KeyDeriver interface {
	DeriveKey(password []byte) ([]byte, bool)
	Algorithm() AlgorithmIdentifier
}

// DataEncryptor encrypts a bag bundle (Encrypt, used for the cert-bag
// EncryptedContentInfo) or a single private key (EncryptKeyBag, used for the
// Pkcs8ShroudedKeyBag), given a password and a KeyDeriver. Each call uses a
// fresh IV: the cert bundle and the shrouded key of one PFX never share
// CBC parameters.
type DataEncryptor interface {
	Encrypt(plaintext, password []byte, deriver KeyDeriver) (EncryptedContentInfo, bool)
	EncryptKeyBag(plaintext, password []byte, deriver KeyDeriver) (SafeBagKind, bool)
}

// ModernOptions holds the tunables of the modern PBKDF2/AES-256 pair.
// Defaults: 16-byte salt and IV, 2048 PBKDF2 iterations, HMAC-SHA-256 PRF,
// 32-byte derived key.
type ModernOptions struct {
	SaltLen    int
	IVLen      int
	Iterations int
	KeyLen     int
}

// DefaultModernOptions returns the modern pair's defaults.
func DefaultModernOptions() ModernOptions {
	return ModernOptions{SaltLen: 16, IVLen: 16, Iterations: 2048, KeyLen: 32}
}

type pbkdf2KeyDeriver struct {
	opts ModernOptions
	rnd  RandRead
	salt []byte
}

// NewPBKDF2KeyDeriver constructs the modern pair's KeyDeriver: HMAC-SHA-256
// PBKDF2, salted freshly on every DeriveKey call.
func NewPBKDF2KeyDeriver(opts ModernOptions, rnd RandRead) KeyDeriver {
	return &pbkdf2KeyDeriver{opts: opts, rnd: rnd}
}

// DeriveKey draws a fresh salt, so two derivations under the same password
// never produce the same key.
func (k *pbkdf2KeyDeriver) DeriveKey(password []byte) ([]byte, bool) {
	salt := make([]byte, k.opts.SaltLen)
	if err := k.rnd(salt); err != nil {
		return nil, false
	}
	k.salt = salt
	return pbkdf2.Key(password, salt, k.opts.Iterations, k.opts.KeyLen, sha256.New), true
}

// Algorithm reports the parameters of the most recent DeriveKey call.
func (k *pbkdf2KeyDeriver) Algorithm() AlgorithmIdentifier {
	// keyLength is left off the wire when it matches the RFC 8018 default
	// of 32 bytes.
	keyLength := int64(k.opts.KeyLen)
	if k.opts.KeyLen == 32 {
		keyLength = 0
	}
	return AlgorithmIdentifier{
		Kind: AlgPbkdf2,
		PBKDF2Params: Pbkdf2Params{
			Salt:           Pbkdf2Salt{Kind: Pbkdf2SaltSpecified, Specified: k.salt},
			IterationCount: int64(k.opts.Iterations),
			KeyLength:      keyLength,
			PRF:            AlgorithmIdentifier{Kind: AlgHmacWithSha256},
			HasPRF:         true,
		},
	}
}

// legacyKeyDeriver is the no-op KeyDeriver of the legacy pair: DeriveKey
// always fails because pbeWithSHAAnd40BitRC2-CBC/pbeWithSHAAnd3-KeyTripleDES
// derive their own key from the password and their own salt per bag.
type legacyKeyDeriver struct{}

// NewLegacyKeyDeriver constructs the legacy pair's placeholder KeyDeriver.
func NewLegacyKeyDeriver() KeyDeriver { return legacyKeyDeriver{} }

func (legacyKeyDeriver) DeriveKey([]byte) ([]byte, bool) { return nil, false }
func (legacyKeyDeriver) Algorithm() AlgorithmIdentifier  { return AlgorithmIdentifier{} }

// aesCbcDataEncryptor is the modern pair's DataEncryptor: AES-256-CBC keyed
// by whatever KeyDeriver it's handed, wrapped in a Pbes2 AlgorithmIdentifier.
type aesCbcDataEncryptor struct {
	opts ModernOptions
	rnd  RandRead
}

// NewModernEncryptor constructs the modern pair's DataEncryptor. A fresh IV
// is drawn for every Encrypt/EncryptKeyBag call.
func NewModernEncryptor(opts ModernOptions, rnd RandRead) DataEncryptor {
	return &aesCbcDataEncryptor{opts: opts, rnd: rnd}
}

func (e *aesCbcDataEncryptor) Encrypt(plaintext, password []byte, deriver KeyDeriver) (EncryptedContentInfo, bool) {
	iv := make([]byte, e.opts.IVLen)
	if err := e.rnd(iv); err != nil {
		return EncryptedContentInfo{}, false
	}
	key, ok := deriver.DeriveKey(password)
	if !ok {
		return EncryptedContentInfo{}, false
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return EncryptedContentInfo{}, false
	}
	ciphertext := pbeEncrypt(block, iv, plaintext)
	alg := AlgorithmIdentifier{
		Kind: AlgPbes2,
		PBES2Params: Pkcs12Pbes2Params{
			KeyDerivationFunc: deriver.Algorithm(),
			EncryptionScheme:  AlgorithmIdentifier{Kind: AlgAesCbcPad, IV: iv},
		},
	}
	return EncryptedContentInfo{ContentEncryptionAlgorithm: alg, EncryptedContent: ciphertext}, true
}

func (e *aesCbcDataEncryptor) EncryptKeyBag(plaintext, password []byte, deriver KeyDeriver) (SafeBagKind, bool) {
	eci, ok := e.Encrypt(plaintext, password, deriver)
	if !ok {
		return SafeBagKind{}, false
	}
	return SafeBagKind{
		Tag: BagPkcs8ShroudedKeyBag,
		ShroudedKeyBag: EncryptedPrivateKeyInfo{
			EncryptionAlgorithm: eci.ContentEncryptionAlgorithm,
			EncryptedData:       eci.EncryptedContent,
		},
	}, true
}

// LegacyOptions documents the defaults of the legacy RC2-40/3DES pair: an
// 8-byte salt and 2048 PKCS12-SHA iterations, shared by both schemes.
type LegacyOptions struct {
	SaltLen    int
	Iterations int
}

// DefaultLegacyOptions returns the legacy pair's documented defaults.
func DefaultLegacyOptions() LegacyOptions {
	return LegacyOptions{SaltLen: 8, Iterations: 2048}
}

// legacyDataEncryptor is the legacy pair's DataEncryptor. It shrouds the
// key bag with 3DES-EDE3-CBC but encrypts the cert-bag bundle with
// RC2-40-CBC, matching common OpenSSL legacy PFX output. It ignores the
// KeyDeriver argument entirely and derives its own key/IV per call via
// PKCS12-SHA, each under a fresh salt.
type legacyDataEncryptor struct {
	opts LegacyOptions
	rnd  RandRead
}

// NewLegacyEncryptor constructs the legacy pair's DataEncryptor.
func NewLegacyEncryptor(opts LegacyOptions, rnd RandRead) DataEncryptor {
	return &legacyDataEncryptor{opts: opts, rnd: rnd}
}

func (e *legacyDataEncryptor) Encrypt(plaintext, bmpPassword []byte, _ KeyDeriver) (EncryptedContentInfo, bool) {
	salt := make([]byte, e.opts.SaltLen)
	if err := e.rnd(salt); err != nil {
		return EncryptedContentInfo{}, false
	}
	params := Pkcs12PbeParams{Salt: salt, Iterations: int64(e.opts.Iterations)}
	ciphertext, err := encryptPbeWithSHAAnd40BitRC2CBC(bmpPassword, params, plaintext)
	if err != nil {
		return EncryptedContentInfo{}, false
	}
	alg := AlgorithmIdentifier{Kind: AlgPbeWithSHAAnd40BitRC2CBC, PBEParams: params}
	return EncryptedContentInfo{ContentEncryptionAlgorithm: alg, EncryptedContent: ciphertext}, true
}

func (e *legacyDataEncryptor) EncryptKeyBag(plaintext, bmpPassword []byte, _ KeyDeriver) (SafeBagKind, bool) {
	salt := make([]byte, e.opts.SaltLen)
	if err := e.rnd(salt); err != nil {
		return SafeBagKind{}, false
	}
	params := Pkcs12PbeParams{Salt: salt, Iterations: int64(e.opts.Iterations)}
	ciphertext, err := encryptPbeWithSHAAnd3KeyTripleDESCBC(bmpPassword, params, plaintext)
	if err != nil {
		return SafeBagKind{}, false
	}
	alg := AlgorithmIdentifier{Kind: AlgPbeWithSHAAnd3KeyTripleDESCBC, PBEParams: params}
	return SafeBagKind{
		Tag: BagPkcs8ShroudedKeyBag,
		ShroudedKeyBag: EncryptedPrivateKeyInfo{
			EncryptionAlgorithm: alg,
			EncryptedData:       ciphertext,
		},
	}, true
}
