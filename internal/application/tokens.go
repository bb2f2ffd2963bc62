package application

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const tokenBytes = 32

// errTokenUnavailable is returned when no random credential could be generated.
// Callers must fail rather than issue a guessable token.
var errTokenUnavailable = errors.New("application: token generator unavailable")

func newRandomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", errTokenUnavailable, err)
	}
	return hex.EncodeToString(buf), nil
}
