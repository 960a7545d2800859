package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    zapcore.Level
		wantErr bool
	}{
		{raw: "", want: zapcore.InfoLevel},
		{raw: "debug", want: zapcore.DebugLevel},
		{raw: " WARN ", want: zapcore.WarnLevel},
		{raw: "error", want: zapcore.ErrorLevel},
		{raw: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNew_RejectsInvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWrap_NamedWith(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core)).Named("cache").With("resource", "absence")
	l.Infow("invalidated", "generation", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "cache", entries[0].LoggerName)
	assert.Equal(t, "absence", entries[0].ContextMap()["resource"])
	assert.EqualValues(t, 2, entries[0].ContextMap()["generation"])
}
