package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zap.AtomicLevel{
		"":        zap.NewAtomicLevelAt(zap.InfoLevel),
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"WARN":    zap.NewAtomicLevelAt(zap.WarnLevel),
		" error ": zap.NewAtomicLevelAt(zap.ErrorLevel),
	}
	for in, want := range cases {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want.Level(), got, in)
	}

	_, err := logging.ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewReplacesGlobals(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	logger, err := logging.New("debug")

	require.NoError(t, err)
	assert.Same(t, logger, zap.L())
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))
}
