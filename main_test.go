package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linesim/internal/config"
)

func TestBuildNotifier(t *testing.T) {
	cfg := config.Default().Notify
	notifier, err := buildNotifier(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, notifier)

	cfg.WebhookURLs = []string{"https://chat.example.com/hook"}
	notifier, err = buildNotifier(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, notifier)

	cfg.TemplatePath = filepath.Join(t.TempDir(), "missing.tmpl")
	_, err = buildNotifier(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg.TemplatePath = filepath.Join(t.TempDir(), "bad.tmpl")
	require.NoError(t, os.WriteFile(cfg.TemplatePath, []byte("{{.Broken"), 0o600))
	_, err = buildNotifier(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenHistorian_EmptyDSN(t *testing.T) {
	db, err := openHistorian("")
	require.NoError(t, err)
	assert.Nil(t, db)
}
