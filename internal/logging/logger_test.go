package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm/logger"
)

func TestNewInstallsGlobalLogger(t *testing.T) {
	l, err := New("development", "warn")
	require.NoError(t, err)
	assert.Same(t, l, zap.L())
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("production", "loud")
	assert.Error(t, err)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, GormLogLevel("development", ""))
	assert.Equal(t, logger.Warn, GormLogLevel("production", ""))
	assert.Equal(t, logger.Silent, GormLogLevel("production", "silent"))
}
