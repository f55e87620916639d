package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://en.wikisource.org/w/api.php", cfg.Site.APIURL)
	assert.Equal(t, "1911 Encyclopædia Britannica", cfg.Collection.Prefix)
	assert.Equal(t, "0|104", cfg.Collection.Namespaces)
	assert.Equal(t, 512*1024, cfg.Archive.MinBinSize)

	re, err := cfg.Collection.PageRe()
	require.NoError(t, err)
	m := re.FindStringSubmatch("Page:EB1911 - Volume 07.djvu/42")
	require.NotNil(t, m)
	assert.Equal(t, "07", m[1])
	assert.Equal(t, "42", m[2])
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[site]
user_agent = "test-agent/1.0"

[logging]
level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-agent/1.0", cfg.Site.UserAgent)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://en.wikisource.org", cfg.Site.BaseURL)
	assert.Equal(t, "1911 Encyclopædia Britannica", cfg.Collection.Prefix)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[site\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
