package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey/inbox-classifier/internal/adapters/filter"
	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags("classify", []string{"-threshold", "20", "-whitelist", "a.com, b.org", "-json"})
	require.NoError(t, err)

	assert.Equal(t, 20, flags.SpamThreshold)
	assert.Equal(t, "none", flags.Provider)
	assert.True(t, flags.JSONOutput)
	assert.True(t, flags.IsSet("threshold"))
	assert.False(t, flags.IsSet("margin"))

	_, err = ParseFlags("classify", []string{"-bogus"})
	assert.Error(t, err)
}

func TestBuildCLIContainer(t *testing.T) {
	flags, err := ParseFlags("classify", []string{"-threshold", "20", "-whitelist", "a.com, b.org"})
	require.NoError(t, err)

	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(cfg *config.Config, emailFilter ports.EmailFilter, summarizer core.Summarizer) {
		assert.IsType(t, &filter.CliFilter{}, emailFilter)
		assert.Nil(t, summarizer)
		assert.Equal(t, 20, cfg.GetSpam().Policy.ScoreThreshold)
		assert.Equal(t, []string{"a.com", "b.org"}, cfg.GetSpam().WhitelistedDomains)
		assert.False(t, cfg.GetBool("cache.enabled"))
	})
	require.NoError(t, err)
}

func TestCLIConfigFileWithFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
classifier:
  margin: 2.0
spam:
  score_threshold: 25
  min_signals: 3
server:
  filter_type: postfix
`), 0o600))

	flags, err := ParseFlags("classify", []string{"-config", path, "-min-signals", "1"})
	require.NoError(t, err)

	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(cfg *config.Config) {
		assert.Equal(t, 2.0, cfg.GetClassifier().Margin)
		assert.Equal(t, 25, cfg.GetSpam().Policy.ScoreThreshold, "file value kept when flag not given")
		assert.Equal(t, 1, cfg.GetSpam().Policy.MinSignals)
		assert.Equal(t, "cli", cfg.GetServer().FilterType)
	})
	require.NoError(t, err)
}

func TestCLIConfigMissingFile(t *testing.T) {
	flags, err := ParseFlags("classify", []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)

	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(cfg *config.Config) {})
	assert.Error(t, err)
}
