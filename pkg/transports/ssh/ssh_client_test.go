package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// testSSHServer provides a minimal SSH server for testing. Commands are
// recorded and answered from a fixed table; the sftp subsystem is served
// against the local filesystem.
type testSSHServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	addr     string
	done     chan struct{}

	mu       sync.Mutex
	commands []string
}

// newTestSSHServer creates a new test SSH server.
func newTestSSHServer(t *testing.T) *testSSHServer {
	_, privateKey, err := generateTestKey()
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if (c.User() == "testuser" || c.User() == "root") && string(pass) == "testpass" {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid credentials")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, pubKey ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}

	config.AddHostKey(privateKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	server := &testSSHServer{
		listener: listener,
		config:   config,
		addr:     listener.Addr().String(),
		done:     make(chan struct{}),
	}

	go server.serve()

	return server
}

// serve handles incoming connections.
func (s *testSSHServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single SSH connection.
func (s *testSSHServer) handleConnection(netConn net.Conn) {
	defer netConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}

		go s.handleChannel(channel, requests)
	}
}

// handleChannel handles a single SSH channel.
func (s *testSSHServer) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			command := string(req.Payload[4:])
			s.mu.Lock()
			s.commands = append(s.commands, command)
			s.mu.Unlock()

			if req.WantReply {
				req.Reply(true, nil)
			}

			switch command {
			case "true":
				channel.SendRequest("exit-status", false, []byte{0, 0, 0, 0})
			case "echo test":
				channel.Write([]byte("test\n"))
				channel.SendRequest("exit-status", false, []byte{0, 0, 0, 0})
			case "echo error >&2":
				channel.Stderr().Write([]byte("error\n"))
				channel.SendRequest("exit-status", false, []byte{0, 0, 0, 0})
			case "hang":
				// Runs until the client closes the channel.
				channel.Write([]byte("started\n"))
				_, _ = io.Copy(io.Discard, channel)
				return
			case "exit 1":
				channel.Stderr().Write([]byte("failed\n"))
				channel.SendRequest("exit-status", false, []byte{0, 0, 0, 1})
			default:
				channel.Write([]byte("command: " + command + "\n"))
				channel.SendRequest("exit-status", false, []byte{0, 0, 0, 0})
			}

			return

		case "subsystem":
			if string(req.Payload[4:]) == "sftp" {
				if req.WantReply {
					req.Reply(true, nil)
				}
				go ssh.DiscardRequests(requests)

				server, err := sftp.NewServer(channel)
				if err != nil {
					return
				}
				_ = server.Serve()
				server.Close()
				return
			}
			if req.WantReply {
				req.Reply(false, nil)
			}

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// executed returns the commands the server has received.
func (s *testSSHServer) executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// close shuts down the test server.
func (s *testSSHServer) close() {
	close(s.done)
	s.listener.Close()
}

// connect returns a connected client for user against the server.
func (s *testSSHServer) connect(t *testing.T, user string) *SSHClient {
	t.Helper()

	host, port := parseAddress(s.addr)

	config := DefaultConfig(host, user)
	config.Name = "test1"
	config.Port = port
	config.AuthMethod = AuthMethodPassword
	config.Password = "testpass"
	config.StrictHostKeyChecking = false
	config.ConnectionTimeout = 5 * time.Second

	client, err := NewSSHClient(config)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// generateTestKey generates a test SSH key pair.
func generateTestKey() (ssh.PublicKey, ssh.Signer, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	signer, err := ssh.NewSignerFromKey(privKey)
	if err != nil {
		return nil, nil, err
	}

	publicKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return nil, nil, err
	}

	return publicKey, signer, nil
}

func TestSSHClientConnect(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "testuser")

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected client to be connected: %v", err)
	}

	host, _ := parseAddress(server.addr)
	if client.config.Host != host {
		t.Errorf("expected host '%s', got '%s'", host, client.config.Host)
	}
	if client.User() != "testuser" {
		t.Errorf("expected user 'testuser', got '%s'", client.User())
	}
	if client.Host() != "test1" {
		t.Errorf("expected session host 'test1', got '%s'", client.Host())
	}
}

func TestSSHClientConnectBadPassword(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	host, port := parseAddress(server.addr)
	config := DefaultConfig(host, "testuser")
	config.Port = port
	config.AuthMethod = AuthMethodPassword
	config.Password = "wrong"
	config.StrictHostKeyChecking = false

	client, err := NewSSHClient(config)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	err = client.Connect(context.Background())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.Op != "connect" {
		t.Fatalf("expected connect transport error, got %v", err)
	}
}

func TestSSHClientHealthCheck(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "testuser")

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check failed: %v", err)
	}
}

func TestSSHClientClose(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	client := server.connect(t, "testuser")

	if err := client.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("expected client to be disconnected")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
	if _, err := client.Run(context.Background(), "true"); err == nil {
		t.Error("expected error running on a closed session")
	}
}

func TestSSHClientKeyBasedAuth(t *testing.T) {
	server := newTestSSHServer(t)
	defer server.close()

	host, port := parseAddress(server.addr)

	config := DefaultConfig(host, "testuser")
	config.Port = port
	config.AuthMethod = AuthMethodKey
	config.PrivateKeyPath = writeTestKey(t)
	config.StrictHostKeyChecking = false

	client, err := NewSSHClient(config)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect with key auth: %v", err)
	}
	defer client.Disconnect()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected client to be connected: %v", err)
	}
}

// parseAddress splits an address into host and port.
func parseAddress(addr string) (string, int) {
	host, portStr, _ := net.SplitHostPort(addr)
	port := 0
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}
