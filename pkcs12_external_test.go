package pkcs12

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// opensslPFXHex is an unmodified `openssl pkcs12 -export` file (OpenSSL 3.0,
// password "changeit", friendly name "look") holding one P-256 key pair:
// PBES2/PBKDF2-HMAC-SHA256/AES-256-CBC throughout, SHA-256 MAC.
const opensslPFXHex = "30820445020103308203fb06092a864886f70d010701a08203ec048203e8308203e43082028206092a864886f70d010706a08202733082026f0201003082026806092a864886f70d010701305706092a864886f70d01050d304a302906092a864886f70d01050c301c040829293f41064eb9ff02020800300c06082a864886f70d02090500301d060960864801650304012a0410b0869bec3c4acec099d7c301e43bca0580820200f8c92c663d8b449024c4e637a7088950a72cef3bd45dfafbb9ea71622c19f788c6a2a6a11cf716e5d8aed694ff6fa1e280d27957b5c8bada0af571e2b8778758435a81208cbe779b9f47d8429f0f822f1a1fe614329cade1553faf6886d4bde700835ab9b5b92f517fb8260159ebb386d38804f7900d1de9ef11f0d717031738ebf3ac3e58ef74824a30537c0d448dd41db30bdc1bd7825b38dcc02017a2c03f53e85e5acb347a891276057ef9ae9ed2ee9c598308fe4c893eb107588593e4c2df117b896e44ba93f0be512e1030645cb8993e9e9cf7a7e45a58399b8eef041b4768e661088a32f6268c9f2bbfcbbce2b962c7dd459c3f9dda7c965a3bea6d224bee90dd07a9f9bb0887ae070bece179c2c4a28b7c6fde137cfea478c6e172c050d40460012d47714bf4c0bb93797f700f2212b79c384c0c7f88aa515acc7a72eae069a48ca192d2fe9196d245c9386a4a8b24aee50be50f4789d46f7c1858f017f936732d108e502c65e286d11df385a25256b4a6a3146d86b96251cb52bb80419e121eba6db0f5560c7fbd147a1f5e3869636b0ee2d58680959f35394d5c6bce4ad99aa4f72e2b1e39a7eee09717ed90946f66d3b5bb8cb840d00aeaebde659da7d9ddf123111b16ff4ee714fe6d1b5a92430c374bef7747602d1598ce01ebe01c62ecad5c8191c2a073fcaebcba32c343929da5ce71d8802b0caa80ee62783082015a06092a864886f70d010701a082014b04820147308201433082013f060b2a864886f70d010c0a0102a081ef3081ec305706092a864886f70d01050d304a302906092a864886f70d01050c301c04081a0febba24c1855a02020800300c06082a864886f70d02090500301d060960864801650304012a0410fd3e21a7e1d94d39f7c4dc914c9a3faf048190f068007c5cc3baaf393236cf7d7fa2392fc01c633b33d07719d16c00eeebc61f42f41a4ac9ec5d49a48eed640522946160c1f6e60b6cfe4cb064cffb72427396079386d4c00c657206066979bd9d071ffcdc1bb6f6029f195c9f0fae8135513bccae943cbaf78bfa7f5b882fe5ac2d7e88db3b118085424882754adf0e366f4a523655d2a32f26cb0d1049a20db4b10e313e301706092a864886f70d010914310a1e08006c006f006f006b302306092a864886f70d01091531160414a971d8fd24d36b15f67980b4c86ffed867f2031a30413031300d060960864801650304020105000420806bc6fd2e987819000daf19e9fb321afcddf2207ed588fc531a6744ef046a1a0408932acdf0e21b3cdb02020800"

// opensslKeyPK8Hex is the PKCS#8 PrivateKeyInfo the file above shrouds
// (`openssl pkcs8 -topk8 -nocrypt` of the same key).
const opensslKeyPK8Hex = "308187020100301306072a8648ce3d020106082a8648ce3d030107046d306b0201010420c89535afe334c953f6b8db67c8f81220558cc7a034d970d681c1c61354fffb57a14403420004498f187ca3fd04b6772595cabe47eab64ddcee794611a20eed05f4b0faf5b91ce88014943bb26ed3175db30b69eb295117bda79a2c3a04b4dcae9fb1b07b012e"

// opensslCertDERHex is the self-signed X.509 certificate in the cert bag.
const opensslCertDERHex = "3082018030820127a00302010202143ad89d811032e4a76f7b7ae1d2c6592604315a49300a06082a8648ce3d04030230163114301206035504030c0b706b637331322074657374301e170d3236303830323030353030395a170d3336303733303030353030395a30163114301206035504030c0b706b6373313220746573743059301306072a8648ce3d020106082a8648ce3d03010703420004498f187ca3fd04b6772595cabe47eab64ddcee794611a20eed05f4b0faf5b91ce88014943bb26ed3175db30b69eb295117bda79a2c3a04b4dcae9fb1b07b012ea3533051301d0603551d0e04160414d8a85b8de3067d57e9d5520e1054a0285ffbf1bd301f0603551d23041830168014d8a85b8de3067d57e9d5520e1054a0285ffbf1bd300f0603551d130101ff040530030101ff300a06082a8648ce3d040302034700304402200ae872338e8fe7c0c743e25b5d3ee429c24fe0509409ab955756d1e7c5749a27022031cbb1b036226eab1c016cdfb0589b4a5fc56b408766402917fe40e5f78930d7"

// opensslLegacyPFXHex is the same key pair exported with
// `openssl pkcs12 -export -legacy`: RC2-40-CBC cert bundle,
// 3DES-EDE3-CBC shrouded key, SHA-1 MAC.
const opensslLegacyPFXHex = "308203b70201033082037d06092a864886f70d010701a082036e0482036a308203663082023f06092a864886f70d010706a08202303082022c0201003082022506092a864886f70d010701301c060a2a864886f70d010c0106300e0408e00b49e4539e038602020800808201f8e8e866ba5fc90f4e2c951e2b3469fb25188c9900a686f4c3993222cca9e2027d39d3c49d2b989cb92e1aca8421cb9bf47c9f90fe232834ba8d7265a08996d3c9bbe0eec08c6fdbfb42f4cc6bbc27dea64869f3253816f34ff9596f2d01e78e726f13bc7bc6b9c9b74b0bcf6c9508fc6c70fbb22403b8538e5b3483d2ae642720a580df569898b6c165f84030f8c3f50bd53f5307d8902585f3f74e2c8907d0ff20f1b334083d5d84082d4375f9f78b93e21b0f32ecfe3bd35de8ecccb76c6a1626ca263aeff8b7cba3f159499fb8bf1cc1839f91f9bbfaf06b6fe914ada96184dd652622873cd51970cbbe79750d67a31ce065f2a24e77a01fdbbe83fa3c3e217f1295604e46db1f81efdea533307a5d0f5bd41dbb8d8c843eee91c0a322185e6e91c636bda9d295f8ed1fbd21e8aa57d3e74eebfa0e81c13a621a6ad852a008202a38fdd05075835abd89299177daf6f7f4e06ba5f7c1e5378af6ee43e1cb79198aa655bf6f6490d1f10b8abca90bd43143711f6bf9bac68c1da04c3349f9792f145cf072cbcd464cc61830f0ef3974369cc2e8b18112c1139e97ae46eb784f5cb5442722ebccb15ce92c206d5ebee8ac97fb4090f566a51ef184c9888765ad40035d40db78f2e15ebffc71b474765eacb2b8299f90a9e5170be8160e08a3f956572492d21ccecde4019d234485d4c5cfa255580381b6b43082011f06092a864886f70d010701a08201100482010c3082010830820104060b2a864886f70d010c0a0102a081b43081b1301c060a2a864886f70d010c0103300e04086c7e5835672c4fc602020800048190cb403bf5ba6b4ef548748f2f52ca6a2f475465ed41c8b52760f730ff420037d80d14674e2caa25c478e9309f08115cfb77a9abf94132451baf3db23e9a5b9518789b7b92ef3d340adb09fcd12c23fd339a1b54c7e58255bbb9ac8ced35344361ca7e85d3da87f7cb31f0633e8500b274e2ef56928e3b6b7191eac9bcdba2975dd8f1226240c4a33fb3b53db93896ebab313e301706092a864886f70d010914310a1e08006c006f006f006b302306092a864886f70d01091531160414a971d8fd24d36b15f67980b4c86ffed867f2031a30313021300906052b0e03021a050004149b4ab782df4dec3316f33fae6e2487d867e792130408a663af138b928c8402020800"

func TestParseOpensslProducedPFX(t *testing.T) {
	t.Parallel()

	pfx, err := Parse(mustHex(t, opensslPFXHex))
	require.NoError(t, err)
	require.Equal(t, 3, pfx.Version)
	require.NotNil(t, pfx.MacData)
	require.Equal(t, AlgSha2, pfx.MacData.Mac.DigestAlgorithm.Kind)

	require.True(t, pfx.VerifyMAC("changeit"))
	require.False(t, pfx.VerifyMAC("wrong"))

	certs, err := pfx.CertX509Bags("changeit")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	require.Equal(t, mustHex(t, opensslCertDERHex), certs[0])

	keys, err := pfx.KeyBags("changeit")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, mustHex(t, opensslKeyPK8Hex), keys[0])
}

func TestOpensslProducedPFXBagAttributes(t *testing.T) {
	t.Parallel()

	pfx, err := Parse(mustHex(t, opensslPFXHex))
	require.NoError(t, err)

	bags, err := pfx.Bags("changeit")
	require.NoError(t, err)
	require.Len(t, bags, 2)

	for _, bag := range bags {
		name, ok := bag.FriendlyName()
		require.True(t, ok)
		require.Equal(t, "look", name)

		keyID, ok := bag.LocalKeyID()
		require.True(t, ok)
		require.Len(t, keyID, 20)
	}
}

func TestOpensslProducedPFXSurvivesReEncode(t *testing.T) {
	t.Parallel()

	pfx, err := Parse(mustHex(t, opensslPFXHex))
	require.NoError(t, err)

	reparsed, err := Parse(pfx.ToDER())
	require.NoError(t, err)
	require.True(t, reparsed.VerifyMAC("changeit"))

	keys, err := reparsed.KeyBags("changeit")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, mustHex(t, opensslKeyPK8Hex), keys[0])
}

func TestParseOpensslLegacyPFX(t *testing.T) {
	t.Parallel()

	pfx, err := Parse(mustHex(t, opensslLegacyPFXHex))
	require.NoError(t, err)
	require.NotNil(t, pfx.MacData)
	require.Equal(t, AlgSha1, pfx.MacData.Mac.DigestAlgorithm.Kind)

	require.True(t, pfx.VerifyMAC("changeit"))
	require.False(t, pfx.VerifyMAC("wrong"))

	certs, err := pfx.CertX509Bags("changeit")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	require.Equal(t, mustHex(t, opensslCertDERHex), certs[0])

	keys, err := pfx.KeyBags("changeit")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, mustHex(t, opensslKeyPK8Hex), keys[0])
}

func TestOpensslProducedPFXWrongPasswordBags(t *testing.T) {
	t.Parallel()

	pfx, err := Parse(mustHex(t, opensslPFXHex))
	require.NoError(t, err)

	_, err = pfx.Bags("wrong")
	require.Error(t, err)
}
