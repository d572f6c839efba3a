package pkcs12

import (
	"crypto/cipher"
	"crypto/des"
	"crypto/sha1"
	"fmt"

	cryptoutilLiberr "cryptoutil/pkcs12/internal/liberr"
	cryptoutilRc2 "cryptoutil/pkcs12/internal/rc2"
)

// pkcs7Pad appends PKCS#7 padding so the result is a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad validates and strips PKCS#7 padding. Every byte in the pad run
// must equal the pad length, and the pad length must be in [1, blockSize];
// any deviation is reported as invalid rather than silently truncated, so a
// bit-flipped ciphertext can't smuggle a plausible-looking plaintext past a
// caller that doesn't check the returned error.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, cryptoutilLiberr.ErrInvalidPadding
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, cryptoutilLiberr.ErrInvalidPadding
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, cryptoutilLiberr.ErrInvalidPadding
		}
	}
	return data[:len(data)-padLen], nil
}

// legacyKeyIV derives the CBC key and IV pair shared by both legacy PBE
// schemes: PKCS12-SHA/SHA-1 with id=1 for the key and id=2 for the IV.
func legacyKeyIV(bmpPassword []byte, params Pkcs12PbeParams, keyLen int) (key, iv []byte) {
	key = pbepkcs12sha(sha1.New, bmpPassword, params.Salt, uint64(params.Iterations), pbeIDKeyMaterial, keyLen)
	iv = pbepkcs12sha(sha1.New, bmpPassword, params.Salt, uint64(params.Iterations), pbeIDIV, 8)
	return key, iv
}

// rc2CBCBlock builds the cipher.Block for pbeWithSHAAnd40BitRC2-CBC: a
// 5-byte (40-bit) key with the effective key length pinned at 40 bits.
func rc2CBCBlock(key []byte) (cipher.Block, error) {
	block, err := cryptoutilRc2.New(key, 40)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoutilLiberr.ErrUnsupportedAlgorithm, err)
	}
	return block, nil
}

func desEDE3CBCBlock(key []byte) (cipher.Block, error) {
	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoutilLiberr.ErrUnsupportedAlgorithm, err)
	}
	return block, nil
}

// pbeDecrypt runs CBC decryption plus PKCS#7 unpadding, collapsing every
// primitive failure to a single sentinel: a caller cannot tell a wrong
// password from tampered ciphertext.
func pbeDecrypt(block cipher.Block, iv, ciphertext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, cryptoutilLiberr.ErrDecryptFailure
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	unpadded, err := pkcs7Unpad(plain, bs)
	if err != nil {
		return nil, cryptoutilLiberr.ErrDecryptFailure
	}
	return unpadded, nil
}

func pbeEncrypt(block cipher.Block, iv, plaintext []byte) []byte {
	bs := block.BlockSize()
	padded := pkcs7Pad(plaintext, bs)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext
}

func decryptPbeWithSHAAnd40BitRC2CBC(bmpPassword []byte, params Pkcs12PbeParams, ciphertext []byte) ([]byte, error) {
	key, iv := legacyKeyIV(bmpPassword, params, 5)
	block, err := rc2CBCBlock(key)
	if err != nil {
		return nil, err
	}
	return pbeDecrypt(block, iv, ciphertext)
}

func encryptPbeWithSHAAnd40BitRC2CBC(bmpPassword []byte, params Pkcs12PbeParams, plaintext []byte) ([]byte, error) {
	key, iv := legacyKeyIV(bmpPassword, params, 5)
	block, err := rc2CBCBlock(key)
	if err != nil {
		return nil, err
	}
	return pbeEncrypt(block, iv, plaintext), nil
}

func decryptPbeWithSHAAnd3KeyTripleDESCBC(bmpPassword []byte, params Pkcs12PbeParams, ciphertext []byte) ([]byte, error) {
	key, iv := legacyKeyIV(bmpPassword, params, 24)
	block, err := desEDE3CBCBlock(key)
	if err != nil {
		return nil, err
	}
	return pbeDecrypt(block, iv, ciphertext)
}

func encryptPbeWithSHAAnd3KeyTripleDESCBC(bmpPassword []byte, params Pkcs12PbeParams, plaintext []byte) ([]byte, error) {
	key, iv := legacyKeyIV(bmpPassword, params, 24)
	block, err := desEDE3CBCBlock(key)
	if err != nil {
		return nil, err
	}
	return pbeEncrypt(block, iv, plaintext), nil
}
