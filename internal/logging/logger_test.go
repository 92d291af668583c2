package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_NopBeforeInitialize(t *testing.T) {
	SetLogger(nil)
	l := Get(CategoryAgent)
	require.NotNil(t, l)
	l.Infof("must not panic")
}

func TestGet_CachesPerCategory(t *testing.T) {
	SetLogger(zap.NewNop())
	assert.Same(t, Get(CategorySandbox), Get(CategorySandbox))
	assert.NotSame(t, Get(CategorySandbox), Get(CategoryLLM))
}

func TestHelpers_RouteToNamedCategory(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))

	Agent("iteration %d", 3)
	SandboxWarn("blocked: %s", "os.ReadFile")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "agent", entries[0].LoggerName)
	assert.Equal(t, "iteration 3", entries[0].Message)
	assert.Equal(t, "sandbox", entries[1].LoggerName)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize(false))
	require.NoError(t, Initialize(true))
	Sync()
	SetLogger(zap.NewNop())
}
