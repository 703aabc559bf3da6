package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndSignVerify(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	msg := []byte("hello aronia")
	sig := kp.Sign(msg)
	assert.True(t, Verify(kp.PublicKey(), msg, sig))

	sig[0] ^= 0xFF
	assert.False(t, Verify(kp.PublicKey(), msg, sig))
}

func TestFromSecretKeyRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	secret := kp.SecretKey()
	restored, err := FromSecretKey(secret)
	require.NoError(t, err)

	assert.Equal(t, kp.PublicKey(), restored.PublicKey())

	msg := []byte("round trip")
	sig := restored.Sign(msg)
	assert.True(t, Verify(kp.PublicKey(), msg, sig))
}

func TestPublicKeyHexAndBase58(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	pk := kp.PublicKey()
	hexForm := pk.Hex()
	assert.Len(t, hexForm, PublicKeySize*2)

	parsed, err := ParsePublicKeyHex(hexForm)
	require.NoError(t, err)
	assert.Equal(t, pk, parsed)

	assert.NotEmpty(t, pk.Base58())
	assert.Equal(t, pk.Hex(), pk.String())
}

func TestParsePublicKeyHexInvalid(t *testing.T) {
	_, err := ParsePublicKeyHex("not-hex")
	assert.Error(t, err)

	_, err = ParsePublicKeyHex("abcd")
	assert.Error(t, err)
}

func TestFromSecretKeyWrongLength(t *testing.T) {
	_, err := FromSecretKey([]byte{1, 2, 3})
	assert.Error(t, err)
}
