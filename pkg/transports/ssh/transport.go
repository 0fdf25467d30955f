// Package ssh implements session.Session over SSH, with SFTP for file
// operations and sudo for anything the login user cannot do directly.
package ssh

import (
	"context"

	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/rs/zerolog/log"
)

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "exec", "write")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

// Dialer opens SSH sessions using the ssh section of the settings document.
type Dialer struct {
	settings environment.SSHSettings

	// Configure, when set, adjusts each connection config before dialing.
	Configure func(*Config)
}

// NewDialer returns a Dialer for the given SSH settings.
func NewDialer(settings environment.SSHSettings) *Dialer {
	return &Dialer{settings: settings}
}

// Dial connects to target and returns the connected client.
func (d *Dialer) Dial(ctx context.Context, target session.Target) (session.Session, error) {
	config := ConfigFromSettings(d.settings, target)
	if d.Configure != nil {
		d.Configure(config)
	}

	client, err := NewSSHClient(config)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	if err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Debug().Str("host", target.Name).Str("user", config.User).Msg("session opened")
	return client, nil
}
