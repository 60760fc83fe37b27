package smartconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutConfigFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	want := Default(dir)
	assert.Equal(t, want, cfg)
}

func TestLoadAppliesFieldLevelOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DefaultRootDirName), 0o755))
	configYAML := `
exclude:
  - "**/vendor/**"
timeouts:
  worker_task: 30s
max_cached_shards: 250
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(configYAML), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"**/vendor/**"}, cfg.Exclude)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.WorkerTask)
	assert.Equal(t, 250, cfg.MaxCachedShards)
	// Untouched fields keep their default.
	assert.Equal(t, 5*time.Second, cfg.Timeouts.FinalizationWrite)
	assert.Equal(t, filepath.Join(dir, DefaultRootDirName), cfg.Root)
}

func TestExcludeMatcherMatchesDefaultPatterns(t *testing.T) {
	exclude := ExcludeMatcher(DefaultExclude)
	assert.True(t, exclude("/repo/node_modules/react/index.js"))
	assert.True(t, exclude("/repo/dist/bundle.js"))
	assert.False(t, exclude("/repo/src/app.ts"))
}
