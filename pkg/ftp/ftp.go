package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// DefaultTimeout applies when the configuration does not set one.
const DefaultTimeout = 90 * time.Second

// Config describes a single remote FTP endpoint.
type Config struct {
	Host     string
	Username string
	Password string
	Port     int
	Timeout  time.Duration
	// Passive selects classic PASV data connections over extended passive
	// mode. Active transfers are not supported by the underlying client.
	Passive  bool
	BasePath string
}

// TransferError is a connection-level fault: unreachable host, rejected
// credentials, or a timed-out control connection. Operation-level refusals
// (object absent, name taken) are reported as a false success flag instead.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("ftp %s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Store hands out single-operation sessions against one remote endpoint.
type Store struct {
	cfg Config
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("ftp host is required")
	}
	if cfg.Username == "" {
		return nil, errors.New("ftp username is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 21
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Store{cfg: cfg}, nil
}

// WithBasePath returns a Store sharing credentials but rooted at basePath.
// An empty basePath keeps the current root.
func (s *Store) WithBasePath(basePath string) *Store {
	if s == nil {
		return nil
	}
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return s
	}
	cfg := s.cfg
	cfg.BasePath = basePath
	return &Store{cfg: cfg}
}

// Begin opens a session scoped to one logical operation. The connection is
// established lazily on first use; callers must Close on every exit path.
func (s *Store) Begin() *Session {
	return &Session{cfg: s.cfg}
}

// Session wraps one control connection. Not safe for concurrent use.
type Session struct {
	cfg  Config
	conn *ftp.ServerConn
}

func (s *Session) connect(ctx context.Context) (*ftp.ServerConn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Passive {
		opts = append(opts, ftp.DialWithDisabledEPSV(true))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, &TransferError{Op: "connect", Err: err}
	}
	if err := conn.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, &TransferError{Op: "login", Err: err}
	}

	s.conn = conn
	return conn, nil
}

// Upload stores src under remoteName. It returns false only when the name is
// already taken, detected before src is read, so a caller may retry under a
// different name. Any failure after the transfer started is an error: src has
// been consumed by then and a retry would store a truncated object.
func (s *Session) Upload(ctx context.Context, src io.Reader, remoteName string) (bool, error) {
	remotePath, err := s.remotePath(remoteName)
	if err != nil {
		return false, err
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return false, err
	}

	// Never overwrite: a colliding name is an operation-level refusal.
	exists, err := s.objectExists(conn, remotePath)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if err := conn.Stor(remotePath, src); err != nil {
		return false, &TransferError{Op: "upload", Err: err}
	}
	return true, nil
}

// objectExists probes remotePath with SIZE and falls back to a name listing
// on servers that do not implement the command.
func (s *Session) objectExists(conn *ftp.ServerConn, remotePath string) (bool, error) {
	exists, known := sizeProbe(conn.FileSize(remotePath))
	if known {
		return exists, nil
	}

	names, err := conn.NameList(remotePath)
	if err != nil {
		if isProtocolRefusal(err) {
			return false, nil
		}
		return false, &TransferError{Op: "upload", Err: err}
	}
	return len(names) > 0, nil
}

// sizeProbe interprets a SIZE reply: present, definitely absent, or unknown
// when the server does not answer the command usefully.
func sizeProbe(_ int64, err error) (exists, known bool) {
	if err == nil {
		return true, true
	}
	var proto *textproto.Error
	if errors.As(err, &proto) && proto.Code == ftp.StatusFileUnavailable {
		return false, true
	}
	return false, false
}

// Download fetches remoteName into localPath. A false return means the remote
// object is absent; a partially written destination is removed before
// reporting failure.
func (s *Session) Download(ctx context.Context, remoteName, localPath string) (bool, error) {
	remotePath, err := s.remotePath(remoteName)
	if err != nil {
		return false, err
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return false, err
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		if isProtocolRefusal(err) {
			return false, nil
		}
		return false, &TransferError{Op: "download", Err: err}
	}
	defer resp.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", localPath, err)
	}

	if _, err := io.Copy(out, resp); err != nil {
		_ = out.Close()
		_ = os.Remove(localPath)
		return false, &TransferError{Op: "download", Err: err}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(localPath)
		return false, fmt.Errorf("close %s: %w", localPath, err)
	}
	return true, nil
}

// Delete removes remoteName. Deleting an absent object returns false, not an
// error.
func (s *Session) Delete(ctx context.Context, remoteName string) (bool, error) {
	remotePath, err := s.remotePath(remoteName)
	if err != nil {
		return false, err
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return false, err
	}

	if err := conn.Delete(remotePath); err != nil {
		if isProtocolRefusal(err) {
			return false, nil
		}
		return false, &TransferError{Op: "delete", Err: err}
	}
	return true, nil
}

// Close releases the control connection. Safe to call on every exit path,
// including before the lazy connect happened.
func (s *Session) Close() {
	if s == nil || s.conn == nil {
		return
	}
	_ = s.conn.Quit()
	s.conn = nil
}

func (s *Session) remotePath(remoteName string) (string, error) {
	if err := ValidateName(remoteName); err != nil {
		return "", err
	}
	if s.cfg.BasePath == "" {
		return remoteName, nil
	}
	return path.Join(s.cfg.BasePath, remoteName), nil
}

// ValidateName rejects anything other than a flat file name, so a caller can
// never traverse outside the configured base path.
func ValidateName(remoteName string) error {
	if remoteName == "" {
		return errors.New("remote name is empty")
	}
	if strings.ContainsAny(remoteName, "/\\") {
		return fmt.Errorf("remote name %q contains a path separator", remoteName)
	}
	if remoteName == "." || remoteName == ".." {
		return fmt.Errorf("remote name %q is not a file name", remoteName)
	}
	return nil
}

// isProtocolRefusal reports whether the server answered with an FTP status
// code, as opposed to the connection itself failing.
func isProtocolRefusal(err error) bool {
	var proto *textproto.Error
	return errors.As(err, &proto)
}
