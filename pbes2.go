package pkcs12

import (
	"crypto/aes"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"

	cryptoutilLiberr "cryptoutil/pkcs12/internal/liberr"
)

// pbes2PRFHash resolves a PBKDF2 PRF AlgorithmIdentifier to a newHash
// constructor.
func pbes2PRFHash(prf AlgorithmIdentifier) (func() hash.Hash, bool) {
	switch prf.Kind {
	case AlgHmacWithSha1:
		return sha1.New, true
	case AlgHmacWithSha256:
		return sha256.New, true
	default:
		return nil, false
	}
}

// decryptPbes2 runs PBKDF2 key derivation followed by AES-CBC decryption
// with PKCS#7 padding. password is raw UTF-8; PBES2 never BMP-encodes its
// password.
func decryptPbes2(params Pkcs12Pbes2Params, password, ciphertext []byte) ([]byte, error) {
	if params.KeyDerivationFunc.Kind != AlgPbkdf2 {
		return nil, fmt.Errorf("%w: pbes2 kdf must be pbkdf2", cryptoutilLiberr.ErrUnsupportedAlgorithm)
	}
	if params.EncryptionScheme.Kind != AlgAesCbcPad {
		return nil, fmt.Errorf("%w: pbes2 scheme must be aes-cbc-pad", cryptoutilLiberr.ErrUnsupportedAlgorithm)
	}

	kdf := params.KeyDerivationFunc.PBKDF2Params
	if kdf.Salt.Kind != Pbkdf2SaltSpecified {
		return nil, cryptoutilLiberr.ErrUnsupportedPBKDF2Salt
	}

	iv := params.EncryptionScheme.IV
	if len(iv) != 16 {
		return nil, fmt.Errorf("%w: aes-cbc-pad iv must be 16 bytes", cryptoutilLiberr.ErrMissingParameters)
	}

	prfHash, ok := pbes2PRFHash(kdf.effectivePRF())
	if !ok {
		return nil, fmt.Errorf("%w: pbkdf2 prf", cryptoutilLiberr.ErrUnsupportedAlgorithm)
	}

	keyLen := kdf.effectiveKeyLength()
	key := pbkdf2.Key(password, kdf.Salt.Specified, int(kdf.IterationCount), keyLen, prfHash)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoutilLiberr.ErrUnsupportedAlgorithm, err)
	}

	return pbeDecrypt(block, iv, ciphertext)
}

