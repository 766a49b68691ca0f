package summarist

import (
	"fmt"
	"os"
	"strings"
)

// SecretResolver turns a stored credential into the plaintext API key.
type SecretResolver interface {
	Resolve(stored string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(stored string) (string, error)

func (f SecretResolverFunc) Resolve(stored string) (string, error) { return f(stored) }

const (
	obfuscatedPrefix = "ENC:"
	envPrefix        = "env:"
	obfuscationKey   = 42
)

// ObfuscatedSecrets reverses the ENC: obfuscation used in stored configs.
// This keeps keys out of casual view only; it is not encryption.
// Values without the prefix are returned unchanged.
type ObfuscatedSecrets struct{}

var _ SecretResolver = ObfuscatedSecrets{}

func (ObfuscatedSecrets) Resolve(stored string) (string, error) {
	if v, ok := strings.CutPrefix(stored, obfuscatedPrefix); ok {
		return xorRunes(v), nil
	}
	return stored, nil
}

// Obfuscate returns the ENC: form of key.
func Obfuscate(key string) string {
	if key == "" {
		return ""
	}
	return obfuscatedPrefix + xorRunes(key)
}

func xorRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(r ^ obfuscationKey)
	}
	return b.String()
}

// EnvSecrets resolves values of the form env:NAME from the environment.
// Other values are returned unchanged.
type EnvSecrets struct{}

var _ SecretResolver = EnvSecrets{}

func (EnvSecrets) Resolve(stored string) (string, error) {
	name, ok := strings.CutPrefix(stored, envPrefix)
	if !ok {
		return stored, nil
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrCredential, name)
	}
	return v, nil
}

// ChainSecrets applies each resolver in turn, feeding the output of one into
// the next.
type ChainSecrets []SecretResolver

func (c ChainSecrets) Resolve(stored string) (string, error) {
	v := stored
	for _, r := range c {
		var err error
		if v, err = r.Resolve(v); err != nil {
			return "", err
		}
	}
	return v, nil
}

// DefaultSecrets handles env: references and ENC: values.
func DefaultSecrets() SecretResolver {
	return ChainSecrets{EnvSecrets{}, ObfuscatedSecrets{}}
}
