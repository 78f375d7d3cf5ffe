package class

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

// Join codes are read out loud in classrooms; the alphabet drops the
// characters students confuse when copying from a board (0/O, 1/I/L).
const (
	codeLen      = 6
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

var errCodeGenExhausted = errors.New("could not generate a unique join code")

// generateCode returns a random codeLen-character join code.
func generateCode() (string, error) {
	buf := make([]byte, codeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
