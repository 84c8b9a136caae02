package refresh

import (
	"crypto/rand"
	"fmt"
)

// randomAlphabet matches the unpredictable-but-printable alphabet commonly
// used for state and nonce values. 64 characters, so random bytes map onto it
// without modulo bias.
const randomAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// RandomString returns n characters drawn from randomAlphabet using the
// cryptographically secure source.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random string length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = randomAlphabet[int(b)%len(randomAlphabet)]
	}
	return string(out), nil
}
