package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelsFollowDebugSwitch(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	defer Replace(newLogger())

	SetDebug(false)
	assert.False(t, IsDebug())
	Info("catalog loaded: %d products", 3)
	Error("reload failed: %s", "boom")

	SetDebug(true)
	assert.True(t, IsDebug())
	SetDebug(false)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "catalog loaded: 3 products", entries[0].Message)
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	}
}
