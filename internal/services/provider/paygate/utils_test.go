package paygate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHmac256(t *testing.T) {
	// fixed vector so a refactor cannot silently change the signature
	digest := Hmac256([]byte("body"), []byte("key"))
	assert.Equal(t, "515aae133b435d4000956731f68ae5cf5eb85d4f0dc6a546d2bfcd3595ec1ae1", digest)
	assert.NotEqual(t, digest, Hmac256([]byte("body"), []byte("other-key")))
}

func TestHashRoundTrip(t *testing.T) {
	hash, err := GenerateHash([]byte("webhook-token"))
	require.NoError(t, err)

	assert.True(t, CompareHash([]byte(hash), []byte("webhook-token")))
	assert.False(t, CompareHash([]byte(hash), []byte("wrong-token")))
}

func TestRandomNumberBounds(t *testing.T) {
	n, err := randomNumber()
	require.NoError(t, err)
	assert.Len(t, n, 18, "request ids are fixed-width")
}
