package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerRedactsCredentials(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core))

	log.Info("login", "access_token", "abc", "Authorization", "Bearer abc", "email", "a@b.c")
	log.Info("jwt", "value", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig")

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["access_token"])
	assert.Equal(t, "[REDACTED]", fields["Authorization"])
	assert.Equal(t, "a@b.c", fields["email"])
	assert.Equal(t, "[REDACTED]", entries[1].ContextMap()["value"])
}

func TestLoggerWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core)).With("dataset_id", "ds-1")
	log.Warn("insights not ready")

	require.Len(t, logs.All(), 1)
	assert.Equal(t, "ds-1", logs.All()[0].ContextMap()["dataset_id"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}
