package environment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings(t *testing.T) {
	withHome(t, "/home/cook")
	dir := t.TempDir()
	path := writeFile(t, dir, "settings.yaml", `
package_dir: ~/frycook/packages
tmp_dir: /var/tmp/frycook
file_ignores: '\.swp$|^\.git/'
ssh:
  key_path: ~/.ssh/id_ed25519
  connect_timeout: 10s
my_recipe_setting: 42
`)

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "/home/cook/frycook/packages", s.PackageDir)
	assert.Equal(t, "/var/tmp/frycook", s.TmpDir)
	assert.Equal(t, filepath.Join("/var/tmp/frycook", "frycook-modules"), s.ModuleDir)
	assert.Equal(t, "root", s.RemoteUser)
	assert.Equal(t, 22, s.SSH.Port)
	assert.Equal(t, "/home/cook/.ssh/id_ed25519", s.SSH.KeyPath)
	assert.Equal(t, 10*time.Second, s.SSH.ConnectTimeout)
	assert.Equal(t, 5*time.Minute, s.SSH.CommandTimeout)
	assert.Equal(t, "none", s.Tracing.Exporter)
	assert.Equal(t, 42, s.Raw()["my_recipe_setting"])

	assert.True(t, s.IgnoreFile("etc/nginx/.default.swp"))
	assert.True(t, s.IgnoreFile(".git/HEAD"))
	assert.False(t, s.IgnoreFile("etc/nginx/nginx.conf"))
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing package_dir", "tmp_dir: /tmp\n"},
		{"bad ignore pattern", "package_dir: /p\nfile_ignores: '(['\n"},
		{"bad port", "package_dir: /p\nssh:\n  port: 70000\n"},
		{"bad exporter", "package_dir: /p\ntracing:\n  exporter: zipkin\n"},
		{"otlp without endpoint", "package_dir: /p\ntracing:\n  exporter: otlp\n"},
		{"bad duration", "package_dir: /p\nssh:\n  connect_timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, "settings.yaml", tt.content)

			_, err := LoadSettings(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errdefs.IsConfigLoad(err) {
				t.Errorf("expected config load error, got %v", err)
			}
		})
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errdefs.IsConfigLoad(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewSettings_NoIgnorePattern(t *testing.T) {
	s, err := NewSettings(map[string]interface{}{"package_dir": "/p"})
	require.NoError(t, err)
	assert.Nil(t, s.IgnorePattern())
	assert.False(t, s.IgnoreFile("anything"))
}
