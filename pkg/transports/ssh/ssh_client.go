package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// SSHClient is a session.Session bound to a single host.
type SSHClient struct {
	config *Config

	client      *ssh.Client
	sftp        *sftp.Client
	connMu      sync.RWMutex
	isConnected bool
	connectedAt time.Time

	stopKeepAlive chan struct{}
}

var _ session.Session = (*SSHClient)(nil)

// NewSSHClient creates a new SSH client. Call Connect before use.
func NewSSHClient(config *Config) (*SSHClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &SSHClient{config: config}, nil
}

// Connect establishes an SSH connection to the remote host.
func (c *SSHClient) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.isConnected && c.client != nil {
		if err := c.healthCheckInternal(); err == nil {
			return nil
		}
		log.Warn().Str("host", c.config.Name).Msg("existing connection is dead, reconnecting")
		c.closeLocked()
	}

	clientConfig, err := c.config.BuildSSHClientConfig()
	if err != nil {
		return &TransportError{
			Op:          "connect",
			Err:         err,
			IsTemporary: false,
			IsAuthError: true,
		}
	}

	address := c.config.Address()
	log.Debug().Str("host", c.config.Name).Str("address", address).Msg("establishing SSH connection")

	connChan := make(chan *ssh.Client, 1)
	errChan := make(chan error, 1)

	go func() {
		client, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- client
	}()

	select {
	case <-ctx.Done():
		return &TransportError{
			Op:          "connect",
			Err:         ctx.Err(),
			IsTemporary: true,
		}
	case err := <-errChan:
		return &TransportError{
			Op:          "connect",
			Err:         err,
			IsTemporary: true,
		}
	case client := <-connChan:
		c.client = client
		c.isConnected = true
		c.connectedAt = time.Now()

		if c.config.KeepAliveInterval > 0 {
			c.stopKeepAlive = make(chan struct{})
			go c.keepAlive(c.stopKeepAlive)
		}

		log.Info().Str("host", c.config.Name).Str("address", address).Str("user", c.config.User).Msg("SSH connection established")
		return nil
	}
}

// Disconnect closes the SSH connection and releases all resources.
func (c *SSHClient) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.isConnected || c.client == nil {
		return nil
	}

	log.Debug().Str("host", c.config.Name).Dur("connected_for", time.Since(c.connectedAt)).Msg("closing SSH connection")

	if err := c.closeLocked(); err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

func (c *SSHClient) closeLocked() error {
	if c.stopKeepAlive != nil {
		close(c.stopKeepAlive)
		c.stopKeepAlive = nil
	}
	if c.sftp != nil {
		_ = c.sftp.Close()
		c.sftp = nil
	}
	var err error
	if c.client != nil {
		err = c.client.Close()
	}
	c.client = nil
	c.isConnected = false
	return err
}

// Close implements session.Session.
func (c *SSHClient) Close() error {
	return c.Disconnect()
}

// Host returns the computer name the client is bound to.
func (c *SSHClient) Host() string {
	return c.config.Name
}

// User returns the login user.
func (c *SSHClient) User() string {
	return c.config.User
}

// HealthCheck verifies the connection is alive and accepts commands.
func (c *SSHClient) HealthCheck(ctx context.Context) error {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	if !c.isConnected || c.client == nil {
		return &TransportError{
			Op:  "healthcheck",
			Err: fmt.Errorf("not connected"),
		}
	}

	return c.healthCheckInternal()
}

// healthCheckInternal runs a no-op command (must be called with lock held).
func (c *SSHClient) healthCheckInternal() error {
	sess, err := c.client.NewSession()
	if err != nil {
		return &TransportError{Op: "healthcheck", Err: err, IsTemporary: true}
	}
	defer sess.Close()

	if err := sess.Run("true"); err != nil {
		return &TransportError{Op: "healthcheck", Err: err, IsTemporary: true}
	}
	return nil
}

// keepAlive sends periodic keep-alive requests until stop is closed.
func (c *SSHClient) keepAlive(stop <-chan struct{}) {
	ticker := time.NewTicker(c.config.KeepAliveInterval)
	defer ticker.Stop()

	retries := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		client, err := c.getClient()
		if err != nil {
			return
		}

		if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
			retries++
			log.Warn().Err(err).Str("host", c.config.Name).Int("retries", retries).Msg("keep-alive failed")
			if retries >= c.config.MaxKeepAliveRetries {
				log.Error().Str("host", c.config.Name).Msg("keep-alive failed too many times, connection may be dead")
				return
			}
			continue
		}
		retries = 0
	}
}

// getClient returns the underlying SSH client.
func (c *SSHClient) getClient() (*ssh.Client, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.isConnected || c.client == nil {
		return nil, &TransportError{
			Op:  "get-client",
			Err: fmt.Errorf("not connected"),
		}
	}

	return c.client, nil
}

// getSFTP returns the connection's SFTP client, opening it on first use.
func (c *SSHClient) getSFTP() (*sftp.Client, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.isConnected || c.client == nil {
		return nil, &TransportError{
			Op:  "sftp-init",
			Err: fmt.Errorf("not connected"),
		}
	}

	if c.sftp != nil {
		return c.sftp, nil
	}

	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, &TransportError{
			Op:          "sftp-init",
			Err:         fmt.Errorf("failed to create SFTP client: %w", err),
			IsTemporary: true,
		}
	}
	c.sftp = client
	return client, nil
}
