package pollstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreflowhq/wabroker/internal/pollstore"
)

func TestNewSecretCipher_RequiresPassphrase(t *testing.T) {
	cipher, err := pollstore.NewSecretCipher("")
	assert.Nil(t, cipher)
	assert.ErrorIs(t, err, pollstore.ErrNoEncryptionKey)
}

func TestSecretCipher_RoundTrip(t *testing.T) {
	cipher, err := pollstore.NewSecretCipher("test-passphrase")
	require.NoError(t, err)

	secret := []byte("whatsapp-poll-message-secret")
	env, err := cipher.Encrypt(secret)
	require.NoError(t, err)

	assert.Equal(t, 1, env.V)
	assert.NotEmpty(t, env.IV)
	assert.NotEmpty(t, env.Tag)
	assert.NotEmpty(t, env.Ciphertext)

	decrypted, err := cipher.Decrypt(env)
	require.NoError(t, err)
	assert.Equal(t, secret, decrypted)
}

func TestSecretCipher_FreshNoncePerEnvelope(t *testing.T) {
	cipher, err := pollstore.NewSecretCipher("test-passphrase")
	require.NoError(t, err)

	secret := []byte("same-secret")
	env1, err := cipher.Encrypt(secret)
	require.NoError(t, err)
	env2, err := cipher.Encrypt(secret)
	require.NoError(t, err)

	assert.NotEqual(t, env1.IV, env2.IV)
	assert.NotEqual(t, env1.Ciphertext, env2.Ciphertext)
}

func TestSecretCipher_WrongKeyFailsAuthentication(t *testing.T) {
	cipher, err := pollstore.NewSecretCipher("passphrase-one")
	require.NoError(t, err)
	other, err := pollstore.NewSecretCipher("passphrase-two")
	require.NoError(t, err)

	env, err := cipher.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Decrypt(env)
	assert.Error(t, err)
}

func TestSecretCipher_RejectsUnknownVersion(t *testing.T) {
	cipher, err := pollstore.NewSecretCipher("test-passphrase")
	require.NoError(t, err)

	env, err := cipher.Encrypt([]byte("secret"))
	require.NoError(t, err)

	env.V = 2
	_, err = cipher.Decrypt(env)
	assert.Error(t, err)
}

func TestSecretCipher_Fingerprint(t *testing.T) {
	cipher, err := pollstore.NewSecretCipher("test-passphrase")
	require.NoError(t, err)
	other, err := pollstore.NewSecretCipher("another-passphrase")
	require.NoError(t, err)

	secret := []byte("secret")
	fp := cipher.Fingerprint(secret)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, cipher.Fingerprint(secret))

	// Keyed: a different passphrase yields a different fingerprint.
	assert.NotEqual(t, fp, other.Fingerprint(secret))
	assert.NotEqual(t, fp, cipher.Fingerprint([]byte("different")))
}
