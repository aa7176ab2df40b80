package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHonorsExplicitRootFlag(t *testing.T) {
	cfg, err := Load("/tmp/explicit-root")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit-root", cfg.Root)
}

func TestLoadHonorsRootEnvVar(t *testing.T) {
	t.Setenv("GOVM_ROOT", "/tmp/env-root")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-root", cfg.Root)
}

func TestLoadFallsBackToHomeDefault(t *testing.T) {
	t.Setenv("GOVM_ROOT", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".govm"), cfg.Root)
}

func TestLoadSetsDownloadDefaults(t *testing.T) {
	cfg, err := Load("/tmp/whatever")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Download.Chunks)
	assert.Equal(t, uint64(3), cfg.Download.MaxRetries)
}
