package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLevel(t *testing.T) {
	l := New("debug", "development")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l = New("bogus", "production")
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@example.org", MaskEmail("admin@example.org"))
	assert.Equal(t, "***", MaskEmail("@example.org"))
	assert.Equal(t, "***", MaskEmail("nobody"))
}
