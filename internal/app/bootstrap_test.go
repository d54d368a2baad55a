package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/prep-area/internal/collection"
	"github.com/ramonehamilton/prep-area/internal/config"
	"github.com/ramonehamilton/prep-area/internal/trade"
)

func TestOptionsFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.App.DataDir = dir
	cfg.Reference.VocabularySnapshot = "vocab.json"
	cfg.Trade.Policy = "single"
	cfg.Trade.DiceLink = "d2"
	cfg.UserDB.BackupInterval = "6h"

	opts, err := OptionsFromConfig(cfg, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "content.db"), opts.Reference.Path)
	assert.Equal(t, filepath.Join(dir, "vocab.json"), opts.Reference.SnapshotPath)
	assert.Equal(t, filepath.Join(dir, "user.db"), opts.UserDB.Path)
	assert.Equal(t, filepath.Join(dir, "backups"), opts.BackupDir)
	assert.Equal(t, 400*time.Millisecond, opts.FlushDelay)
	assert.Equal(t, trade.PolicySingleCopy, opts.Policy)
	assert.Equal(t, collection.DiceLinkTwo, opts.DiceLink)
	assert.Equal(t, 64, opts.FilterSize)
	assert.Equal(t, 6*time.Hour, opts.BackupInterval)
	assert.Equal(t, 10, opts.BackupKeep)
}

func TestOptionsFromConfig_InvalidFlushDelay(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.FlushDelay = "soon"

	_, err := OptionsFromConfig(cfg, nil, nil)
	assert.Error(t, err)
}
