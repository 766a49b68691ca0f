package summarist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sm "github.com/ineyio/summarist"
)

func TestObfuscate(t *testing.T) {
	enc := sm.Obfuscate("sk-ÄBC-123")
	assert.NotContains(t, enc, "sk-")

	plain, err := sm.ObfuscatedSecrets{}.Resolve(enc)
	require.NoError(t, err)
	assert.Equal(t, "sk-ÄBC-123", plain)

	assert.Empty(t, sm.Obfuscate(""))

	plain, err = sm.ObfuscatedSecrets{}.Resolve("plain-key")
	require.NoError(t, err)
	assert.Equal(t, "plain-key", plain)
}

func TestEnvSecrets(t *testing.T) {
	t.Setenv("SUMMARIST_TEST_KEY", "from-env")

	v, err := sm.EnvSecrets{}.Resolve("env:SUMMARIST_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = sm.EnvSecrets{}.Resolve("env:SUMMARIST_TEST_MISSING")
	assert.ErrorIs(t, err, sm.ErrCredential)
}

func TestDefaultSecrets_EnvHoldingObfuscatedValue(t *testing.T) {
	t.Setenv("SUMMARIST_TEST_KEY", sm.Obfuscate("sk-real"))

	v, err := sm.DefaultSecrets().Resolve("env:SUMMARIST_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-real", v)
}

func TestSecretResolverFunc(t *testing.T) {
	r := sm.SecretResolverFunc(func(s string) (string, error) { return s + "!", nil })
	v, err := r.Resolve("x")
	require.NoError(t, err)
	assert.Equal(t, "x!", v)
}
