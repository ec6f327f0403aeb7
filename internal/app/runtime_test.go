package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTestModeRereadsEnvironment(t *testing.T) {
	t.Cleanup(RefreshTestMode)

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	assert.True(t, InTestMode())
	RefreshTestMode()
	assert.False(t, InTestMode())
}
