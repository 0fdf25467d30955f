// Package sessiontest provides an in-memory session.Session for tests.
package sessiontest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/jfarrimo/frycook/pkg/session"
)

// Entry is a file or directory held by a Session.
type Entry struct {
	Dir   bool
	Data  []byte
	Mode  os.FileMode
	Owner string
	Group string
}

// Call records one operation performed through a Session.
type Call struct {
	Op      string
	Subject string
}

// Session is an in-memory session.Session. It keeps a filesystem, a log of
// every call and supports scripted command output and failure injection.
type Session struct {
	HostName string
	UserName string

	// OnCommand, when set, produces the result of Run and Sudo calls that have
	// no scripted response.
	OnCommand func(cmd string) (string, error)

	mu        sync.Mutex
	entries   map[string]*Entry
	calls     []Call
	responses map[string]string
	failures  map[string]error
	writes    int
	closed    bool
}

// New returns an empty Session for host with only "/" present.
func New(host string) *Session {
	return &Session{
		HostName:  host,
		UserName:  "root",
		entries:   map[string]*Entry{"/": {Dir: true, Mode: 0o755, Owner: "root", Group: "root"}},
		responses: map[string]string{},
		failures:  map[string]error{},
	}
}

var _ session.Session = (*Session)(nil)

// Respond scripts the output of a command.
func (s *Session) Respond(cmd, stdout string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[cmd] = stdout
}

// Fail makes op fail with err for subject. An empty subject matches every
// call of op. Ops are run, sudo, mkdir, write, remove, chmod, chown and exists.
func (s *Session) Fail(op, subject string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op+"\x00"+subject] = err
}

// Put seeds a file with default ownership.
func (s *Session) Put(p string, data []byte, mode os.FileMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAll(path.Dir(p), 0o755)
	s.entries[path.Clean(p)] = &Entry{Data: append([]byte(nil), data...), Mode: mode, Owner: "root", Group: "root"}
}

// Get returns a copy of the entry at p.
func (s *Session) Get(p string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path.Clean(p)]
	if !ok {
		return Entry{}, false
	}
	cp := *e
	cp.Data = append([]byte(nil), e.Data...)
	return cp, true
}

// Paths returns every path present, sorted.
func (s *Session) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for p := range s.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Calls returns a copy of the call log.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Commands returns the commands executed, in order. Sudo commands carry a
// "sudo " prefix.
func (s *Session) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		switch c.Op {
		case "run":
			out = append(out, c.Subject)
		case "sudo":
			out = append(out, "sudo "+c.Subject)
		}
	}
	return out
}

// Writes returns how many WriteFile calls changed a file.
func (s *Session) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reopen clears the closed flag and the call log so the Session can serve another run.
func (s *Session) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	s.calls = nil
	s.writes = 0
}

func (s *Session) record(op, subject string) error {
	s.calls = append(s.calls, Call{Op: op, Subject: subject})
	if s.closed {
		return fmt.Errorf("%s %s: session closed", op, subject)
	}
	if err, ok := s.failures[op+"\x00"+subject]; ok {
		return err
	}
	if err, ok := s.failures[op+"\x00"]; ok {
		return err
	}
	return nil
}

func (s *Session) Host() string { return s.HostName }

func (s *Session) User() string { return s.UserName }

func (s *Session) Run(ctx context.Context, cmd string) (string, error) {
	return s.exec("run", cmd)
}

func (s *Session) Sudo(ctx context.Context, cmd string) (string, error) {
	return s.exec("sudo", cmd)
}

func (s *Session) exec(op, cmd string) (string, error) {
	s.mu.Lock()
	if err := s.record(op, cmd); err != nil {
		s.mu.Unlock()
		return "", err
	}
	out, ok := s.responses[cmd]
	hook := s.OnCommand
	s.mu.Unlock()

	if ok {
		return out, nil
	}
	if hook != nil {
		return hook(cmd)
	}
	return "", nil
}

func (s *Session) MkdirAll(ctx context.Context, p string, mode os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("mkdir", p); err != nil {
		return err
	}
	return s.mkdirAll(p, mode)
}

func (s *Session) mkdirAll(p string, mode os.FileMode) error {
	p = path.Clean(p)
	if e, ok := s.entries[p]; ok {
		if !e.Dir {
			return fmt.Errorf("mkdir %s: not a directory", p)
		}
		return nil
	}
	if p != "/" {
		if err := s.mkdirAll(path.Dir(p), mode); err != nil {
			return err
		}
	}
	s.entries[p] = &Entry{Dir: true, Mode: mode.Perm(), Owner: "root", Group: "root"}
	return nil
}

func (s *Session) WriteFile(ctx context.Context, p string, data []byte, mode os.FileMode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("write", p); err != nil {
		return false, err
	}

	p = path.Clean(p)
	parent, ok := s.entries[path.Dir(p)]
	if !ok || !parent.Dir {
		return false, fmt.Errorf("write %s: %w", p, os.ErrNotExist)
	}

	if e, ok := s.entries[p]; ok {
		if e.Dir {
			return false, fmt.Errorf("write %s: is a directory", p)
		}
		if bytes.Equal(e.Data, data) && e.Mode == mode.Perm() {
			return false, nil
		}
		e.Data = append([]byte(nil), data...)
		e.Mode = mode.Perm()
		s.writes++
		return true, nil
	}

	s.entries[p] = &Entry{Data: append([]byte(nil), data...), Mode: mode.Perm(), Owner: "root", Group: "root"}
	s.writes++
	return true, nil
}

func (s *Session) Remove(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("remove", p); err != nil {
		return err
	}
	p = path.Clean(p)
	if e, ok := s.entries[p]; ok && e.Dir {
		prefix := p + "/"
		for other := range s.entries {
			if strings.HasPrefix(other, prefix) {
				return fmt.Errorf("remove %s: directory not empty", p)
			}
		}
	}
	delete(s.entries, p)
	return nil
}

func (s *Session) Chmod(ctx context.Context, p string, mode os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("chmod", p); err != nil {
		return err
	}
	e, ok := s.entries[path.Clean(p)]
	if !ok {
		return fmt.Errorf("chmod %s: %w", p, os.ErrNotExist)
	}
	e.Mode = mode.Perm()
	return nil
}

func (s *Session) Chown(ctx context.Context, p, owner, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("chown", p); err != nil {
		return err
	}
	e, ok := s.entries[path.Clean(p)]
	if !ok {
		return fmt.Errorf("chown %s: %w", p, os.ErrNotExist)
	}
	if owner != "" {
		e.Owner = owner
	}
	if group != "" {
		e.Group = group
	}
	return nil
}

func (s *Session) Exists(ctx context.Context, p string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("exists", p); err != nil {
		return false, err
	}
	_, ok := s.entries[path.Clean(p)]
	return ok, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "close"})
	s.closed = true
	return nil
}

// Dialer hands out Sessions per host. Sessions prepared with Add are reused
// across dials so remote state survives between runs.
type Dialer struct {
	mu       sync.Mutex
	sessions map[string]*Session
	failures map[string]error
	dialed   []session.Target
}

// NewDialer returns an empty Dialer.
func NewDialer() *Dialer {
	return &Dialer{sessions: map[string]*Session{}, failures: map[string]error{}}
}

// Add registers the session handed out for its host.
func (d *Dialer) Add(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[s.HostName] = s
}

// FailDial makes dialing host fail with err.
func (d *Dialer) FailDial(host string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[host] = err
}

// Session returns the session for host, if one was dialed or added.
func (d *Dialer) Session(host string) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[host]
}

// Dialed returns the targets dialed, in order.
func (d *Dialer) Dialed() []session.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]session.Target(nil), d.dialed...)
}

// Dial implements session.Dialer.
func (d *Dialer) Dial(ctx context.Context, target session.Target) (session.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, target)
	if err, ok := d.failures[target.Name]; ok {
		return nil, err
	}
	s, ok := d.sessions[target.Name]
	if !ok {
		s = New(target.Name)
		d.sessions[target.Name] = s
	} else if s.Closed() {
		s.Reopen()
	}
	if target.User != "" {
		s.UserName = target.User
	}
	return s, nil
}
