package config

import (
	"os"
	"path/filepath"
	"testing"

	"hashdex/pkg/hashing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []hashing.Algorithm{hashing.MD5, hashing.SHA256}, cfg.Algorithms)
	assert.Equal(t, hashing.MD5, cfg.IDAlgorithm)
	assert.True(t, cfg.MergeEnabled())
	assert.False(t, cfg.Destructive())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		substr string
	}{
		{"single algorithm", func(c *Config) { c.Algorithms = []hashing.Algorithm{hashing.SHA256} }, "at least two"},
		{"unknown algorithm", func(c *Config) { c.Algorithms = []hashing.Algorithm{"crc32"} }, "unknown hash algorithm"},
		{"id algorithm not selected", func(c *Config) { c.IDAlgorithm = hashing.SHA512 }, "id algorithm"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"bad sidecar kind", func(c *Config) { c.Sidecars = []SidecarRule{{Type: "x", Kind: "xml", Patterns: []string{"*.x"}}} }, "unknown kind"},
		{"sidecar without patterns", func(c *Config) { c.Sidecars = []SidecarRule{{Type: "x", Kind: "text"}} }, "no patterns"},
		{"bad catalog driver", func(c *Config) { c.Catalog = CatalogConfig{Enabled: true, Driver: "mysql", DSN: "x"} }, "catalog driver"},
		{"catalog without dsn", func(c *Config) { c.Catalog = CatalogConfig{Enabled: true, Driver: "sqlite"} }, "dsn"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestDestructive(t *testing.T) {
	cfg := Default()
	cfg.Rename = true
	assert.True(t, cfg.Destructive())
	cfg.DryRun = true
	assert.False(t, cfg.Destructive())
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	tmpDir := t.TempDir()
	cfgFile := filepath.Join(tmpDir, "hdx.yaml")
	content := `
hash:
  algorithms: [md5, sha256, sha512]
  id_algorithm: sha256
rename: true
merge_delete: true
workers: 2
exclude:
  - "*.tmp"
exif:
  enabled: true
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0644))
	require.NoError(t, Load(cfgFile))

	cfg, err := FromViper()
	require.NoError(t, err)

	assert.Equal(t, []hashing.Algorithm{hashing.MD5, hashing.SHA256, hashing.SHA512}, cfg.Algorithms)
	assert.Equal(t, hashing.SHA256, cfg.IDAlgorithm)
	assert.True(t, cfg.Rename)
	assert.True(t, cfg.MergeDelete)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, []string{"*.tmp"}, cfg.Exclude)

	// 部分覆盖的嵌套 key 仍保留默认值
	assert.True(t, cfg.Exif.Enabled)
	assert.Equal(t, "exiftool", cfg.Exif.Binary)
	assert.NotEmpty(t, cfg.Exif.ExcludeExtensions)
	assert.Len(t, cfg.Sidecars, len(DefaultSidecarRules()))
}

func TestLoad_InvalidFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfgFile := filepath.Join(t.TempDir(), "hdx.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("rename: [unclosed"), 0644))

	err := Load(cfgFile)
	assert.Error(t, err)
}

func TestFromViper_CustomSidecars(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfgFile := filepath.Join(t.TempDir(), "hdx.yaml")
	content := `
sidecars:
  - type: notes
    kind: text
    patterns: ["*.notes"]
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0644))
	require.NoError(t, Load(cfgFile))

	cfg, err := FromViper()
	require.NoError(t, err)
	require.Len(t, cfg.Sidecars, 1)
	assert.Equal(t, SidecarRule{Type: "notes", Kind: "text", Patterns: []string{"*.notes"}}, cfg.Sidecars[0])
}
