package app

import (
	"strings"

	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/google/uuid"
)

// SecretGenerator issues session ids from two random (crypto/rand) UUIDs.
type SecretGenerator struct{}

var _ core.SecretGenerator = SecretGenerator{}

func (SecretGenerator) NextSecret() (string, error) {
	a, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(a.String()+b.String(), "-", ""), nil
}
