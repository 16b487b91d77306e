package app_test

import (
	"testing"

	"github.com/dkeye/jsonrpcd/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretGeneratorIsUnguessable(t *testing.T) {
	t.Parallel()

	g := app.SecretGenerator{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := g.NextSecret()
		require.NoError(t, err)
		assert.Len(t, s, 64)
		assert.NotContains(t, s, "-")
		assert.False(t, seen[s])
		seen[s] = true
	}
}
