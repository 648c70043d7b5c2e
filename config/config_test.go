package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasAllThreeProfiles(t *testing.T) {
	cfg := Default()
	assert.Contains(t, cfg.QuotaProfiles, "interactive")
	assert.Contains(t, cfg.QuotaProfiles, "background")
	assert.Contains(t, cfg.QuotaProfiles, "batch")
	assert.Equal(t, 256, cfg.Scheduler.DequeCapacity)
	assert.Equal(t, "minor", cfg.InvalidationMinSeverity)
}

func TestQuotaProfile_ToLimits_RoundTrips(t *testing.T) {
	p := QuotaProfile{WallTimeMillis: 10, MemoryBytes: 1 << 20, NodeVisits: 100, MaxDepth: 5, Gas: 1000}
	limits := p.ToLimits()
	assert.Equal(t, int64(100), limits.NodeVisits)
	assert.Equal(t, 5, limits.MaxDepth)
	assert.Equal(t, int64(1000), limits.Gas)
}

func TestLoad_OverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
invalidation_min_severity = "major"

[scheduler]
workers = 4
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "major", cfg.InvalidationMinSeverity)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	// untouched defaults survive
	assert.Equal(t, 256, cfg.Scheduler.DequeCapacity)
	assert.Contains(t, cfg.QuotaProfiles, "interactive")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	assert.Error(t, err)
}
