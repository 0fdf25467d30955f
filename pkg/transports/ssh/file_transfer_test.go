package ssh

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileOperationsOverSFTP(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "root")
	ctx := context.Background()
	root := t.TempDir()

	dir := filepath.Join(root, "etc", "nginx")
	require.NoError(t, client.MkdirAll(ctx, dir, 0o750))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())

	// An existing directory is left alone.
	require.NoError(t, client.MkdirAll(ctx, dir, 0o700))
	info, _ = os.Stat(dir)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())

	file := filepath.Join(dir, "nginx.conf")
	changed, err := client.WriteFile(ctx, file, []byte("worker_processes 1;\n"), 0o644)
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "worker_processes 1;\n", string(data))

	changed, err = client.WriteFile(ctx, file, []byte("worker_processes 1;\n"), 0o644)
	require.NoError(t, err)
	assert.False(t, changed, "identical content and mode is not rewritten")

	changed, err = client.WriteFile(ctx, file, []byte("worker_processes 1;\n"), 0o600)
	require.NoError(t, err)
	assert.True(t, changed, "a mode change is a change")
	info, _ = os.Stat(file)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	changed, err = client.WriteFile(ctx, file, []byte("worker_processes 2;\n"), 0o600)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "worker_processes 2;\n", string(got))

	require.NoError(t, client.Chmod(ctx, file, 0o640))
	info, _ = os.Stat(file)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	exists, err := client.Exists(ctx, file)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.Remove(ctx, file))
	exists, err = client.Exists(ctx, file)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, client.Remove(ctx, file), "removing an absent file is not an error")
}

func TestWriteFileIntoMissingDirectory(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "root")

	_, err := client.WriteFile(context.Background(), filepath.Join(t.TempDir(), "absent", "f"), []byte("x"), 0o644)
	require.Error(t, err)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestChownRunsCommand(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "root")
	ctx := context.Background()

	require.NoError(t, client.Chown(ctx, "/srv/www", "www-data", "www-data"))
	require.NoError(t, client.Chown(ctx, "/srv/www/index.html", "", "adm"))
	require.NoError(t, client.Chown(ctx, "/srv/www/untouched", "", ""))

	executed := server.executed()
	assert.Equal(t, []string{
		"chown 'www-data:www-data' '/srv/www'",
		"chown ':adm' '/srv/www/index.html'",
	}, executed)
}

func TestNonRootFileOperationsUseSudo(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "testuser")
	ctx := context.Background()

	require.NoError(t, client.MkdirAll(ctx, "/etc/frycook", 0o755))
	require.NoError(t, client.Chmod(ctx, "/etc/frycook", 0o700))
	require.NoError(t, client.Remove(ctx, "/etc/frycook/old"))

	executed := server.executed()
	require.Len(t, executed, 3)
	for _, cmd := range executed {
		assert.True(t, strings.HasPrefix(cmd, "sudo -n sh -c "), cmd)
	}
	assert.Equal(t, "sudo -n sh -c "+shellQuote("test -d '/etc/frycook' || (mkdir -p '/etc/frycook' && chmod 0755 '/etc/frycook')"), executed[0])
	assert.Contains(t, executed[1], "chmod 0700")
	assert.Contains(t, executed[2], "rm -f")
}

func TestDialer(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	host, port := parseAddress(server.addr)
	dialer := NewDialer(environment.SSHSettings{
		Port:           port,
		ConnectTimeout: 5 * time.Second,
		CommandTimeout: time.Minute,
	})
	dialer.Configure = func(c *Config) {
		c.AuthMethod = AuthMethodPassword
		c.Password = "testpass"
	}

	var d session.Dialer = dialer
	sess, err := d.Dial(context.Background(), session.Target{Name: "web1", Address: host, User: "root"})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, "web1", sess.Host())
	assert.Equal(t, "root", sess.User())

	out, err := sess.Run(context.Background(), "echo test")
	require.NoError(t, err)
	assert.Equal(t, "test", out)
}

func TestDialerConnectFailure(t *testing.T) {
	dialer := NewDialer(environment.SSHSettings{Port: 1, ConnectTimeout: time.Second, CommandTimeout: time.Second})
	dialer.Configure = func(c *Config) {
		c.AuthMethod = AuthMethodPassword
		c.Password = "x"
	}

	_, err := dialer.Dial(context.Background(), session.Target{Name: "nowhere", Address: "127.0.0.1", User: "root"})
	require.Error(t, err)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}
