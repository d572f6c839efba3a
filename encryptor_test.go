package pkcs12

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModernEncryptorRoundTrip(t *testing.T) {
	t.Parallel()

	deriver := NewPBKDF2KeyDeriver(DefaultModernOptions(), fixedRand(0x01))
	encryptor := NewModernEncryptor(DefaultModernOptions(), fixedRand(0x02))

	password := []byte("a modern password")
	plaintext := []byte("safe contents sequence der bytes")

	eci, ok := encryptor.Encrypt(plaintext, password, deriver)
	require.True(t, ok)
	require.Equal(t, AlgPbes2, eci.ContentEncryptionAlgorithm.Kind)

	decrypted, err := decryptPbes2(eci.ContentEncryptionAlgorithm.PBES2Params, password, eci.EncryptedContent)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestModernEncryptorEncryptKeyBagRoundTrip(t *testing.T) {
	t.Parallel()

	deriver := NewPBKDF2KeyDeriver(DefaultModernOptions(), fixedRand(0x01))
	encryptor := NewModernEncryptor(DefaultModernOptions(), fixedRand(0x02))

	password := []byte("a modern password")
	plaintext := []byte("a pkcs8 private key info der blob")

	bag, ok := encryptor.EncryptKeyBag(plaintext, password, deriver)
	require.True(t, ok)
	require.Equal(t, BagPkcs8ShroudedKeyBag, bag.Tag)

	decrypted, err := decryptPbes2(bag.ShroudedKeyBag.EncryptionAlgorithm.PBES2Params, password, bag.ShroudedKeyBag.EncryptedData)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

// sequenceRand emits an incrementing byte stream across calls, so two draws
// from the same source never produce the same bytes.
func sequenceRand() RandRead {
	var counter byte
	return func(p []byte) error {
		for i := range p {
			p[i] = counter
			counter++
		}
		return nil
	}
}

func TestModernEncryptorFreshSaltAndIVPerStructure(t *testing.T) {
	t.Parallel()

	rnd := sequenceRand()
	deriver := NewPBKDF2KeyDeriver(DefaultModernOptions(), rnd)
	encryptor := NewModernEncryptor(DefaultModernOptions(), rnd)

	password := []byte("a modern password")
	certsPlaintext := []byte("cert safe contents der bytes")
	keyPlaintext := []byte("a pkcs8 private key info der blob")

	eci, ok := encryptor.Encrypt(certsPlaintext, password, deriver)
	require.True(t, ok)
	bag, ok := encryptor.EncryptKeyBag(keyPlaintext, password, deriver)
	require.True(t, ok)

	certParams := eci.ContentEncryptionAlgorithm.PBES2Params
	keyParams := bag.ShroudedKeyBag.EncryptionAlgorithm.PBES2Params

	require.NotEqual(t,
		certParams.KeyDerivationFunc.PBKDF2Params.Salt.Specified,
		keyParams.KeyDerivationFunc.PBKDF2Params.Salt.Specified)
	require.NotEqual(t, certParams.EncryptionScheme.IV, keyParams.EncryptionScheme.IV)

	decryptedCerts, err := decryptPbes2(certParams, password, eci.EncryptedContent)
	require.NoError(t, err)
	require.Equal(t, certsPlaintext, decryptedCerts)

	decryptedKey, err := decryptPbes2(keyParams, password, bag.ShroudedKeyBag.EncryptedData)
	require.NoError(t, err)
	require.Equal(t, keyPlaintext, decryptedKey)
}

func TestLegacyEncryptorUsesRC2ForCertsAnd3DESForKeys(t *testing.T) {
	t.Parallel()

	encryptor := NewLegacyEncryptor(DefaultLegacyOptions(), fixedRand(0x03))
	deriver := NewLegacyKeyDeriver()

	bmpPassword, ok := bmpString("legacy password")
	require.True(t, ok)

	certsPlaintext := []byte("cert safe contents der bytes")
	eci, ok := encryptor.Encrypt(certsPlaintext, bmpPassword, deriver)
	require.True(t, ok)
	require.Equal(t, AlgPbeWithSHAAnd40BitRC2CBC, eci.ContentEncryptionAlgorithm.Kind)

	decryptedCerts, err := decryptPbeWithSHAAnd40BitRC2CBC(bmpPassword, eci.ContentEncryptionAlgorithm.PBEParams, eci.EncryptedContent)
	require.NoError(t, err)
	require.Equal(t, certsPlaintext, decryptedCerts)

	keyPlaintext := []byte("pkcs8 private key info der bytes")
	bag, ok := encryptor.EncryptKeyBag(keyPlaintext, bmpPassword, deriver)
	require.True(t, ok)
	require.Equal(t, AlgPbeWithSHAAnd3KeyTripleDESCBC, bag.ShroudedKeyBag.EncryptionAlgorithm.Kind)

	decryptedKey, err := decryptPbeWithSHAAnd3KeyTripleDESCBC(bmpPassword, bag.ShroudedKeyBag.EncryptionAlgorithm.PBEParams, bag.ShroudedKeyBag.EncryptedData)
	require.NoError(t, err)
	require.Equal(t, keyPlaintext, decryptedKey)
}

func TestLegacyKeyDeriverAlwaysFails(t *testing.T) {
	t.Parallel()

	_, ok := NewLegacyKeyDeriver().DeriveKey([]byte("anything"))
	require.False(t, ok)
}
