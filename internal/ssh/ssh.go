// Package ssh connects to targets over SSH, runs commands and uploads files.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultTimeout bounds connection setup when Host.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Host describes how to reach one target.
type Host struct {
	Address  string
	Port     int
	User     string
	Password string
	KeyPath  string

	// HostKeyChecking verifies the server key against KnownHostsFile,
	// ~/.ssh/known_hosts when empty.
	HostKeyChecking bool
	KnownHostsFile  string
	Timeout         time.Duration
}

// Client is an open connection to one target.
type Client struct {
	conn   *ssh.Client
	logger *slog.Logger
}

// Connect opens an SSH connection using password, key, default key and
// agent authentication, in that order.
func Connect(ctx context.Context, host Host, logger *slog.Logger) (*Client, error) {
	logger = logger.With("host", host.Address)

	auth, agentConn, err := authMethods(host, logger)
	if err != nil {
		return nil, err
	}
	if agentConn != nil {
		// The agent is only consulted during the handshake.
		defer agentConn.Close()
	}
	hostKey, err := hostKeyCallback(host)
	if err != nil {
		return nil, err
	}

	timeout := host.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	config := &ssh.ClientConfig{
		User:            host.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}

	port := host.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host.Address, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, cerr.Wrapf(err, "dialing %s", addr)
	}
	_ = raw.SetDeadline(time.Now().Add(timeout))
	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, config)
	if err != nil {
		_ = raw.Close()
		return nil, cerr.Wrapf(err, "ssh handshake with %s", addr)
	}
	_ = raw.SetDeadline(time.Time{})

	logger.Debug("connected", "addr", addr, "user", host.User)
	return &Client{conn: ssh.NewClient(conn, chans, reqs), logger: logger}, nil
}

// authMethods returns the usable methods and the agent connection, if one
// was opened. The caller closes it.
func authMethods(host Host, logger *slog.Logger) ([]ssh.AuthMethod, net.Conn, error) {
	var (
		methods   []ssh.AuthMethod
		agentConn net.Conn
	)

	if host.Password != "" {
		methods = append(methods, ssh.Password(host.Password))
	}

	if host.KeyPath != "" {
		signer, err := readKey(host.KeyPath)
		if err != nil {
			return nil, nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	} else if usr, err := user.Current(); err == nil {
		defaultKeyPath := filepath.Join(usr.HomeDir, ".ssh", "id_rsa")
		if signer, err := readKey(defaultKeyPath); err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
			logger.Debug("using default ssh key", "path", defaultKeyPath)
		} else {
			logger.Debug("default ssh key unusable", "error", err)
		}
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			logger.Debug("using ssh agent")
		} else {
			logger.Debug("ssh agent unavailable", "error", err)
		}
	}

	if len(methods) == 0 {
		return nil, nil, cerr.WithHint(
			cerr.New("no authentication methods available"),
			"pass a password, a private key file or run an ssh agent")
	}
	return methods, agentConn, nil
}

func readKey(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrap(err, "reading ssh key")
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, cerr.Wrap(err, "parsing ssh key")
	}
	return signer, nil
}

func hostKeyCallback(host Host) (ssh.HostKeyCallback, error) {
	if !host.HostKeyChecking {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := host.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, cerr.Wrap(err, "locating known_hosts")
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, cerr.Wrap(err, "loading known hosts")
	}
	return cb, nil
}

// Run executes cmd on the remote host, feeding it stdin. A non-zero exit
// status is returned as rc, not as an error.
func (c *Client) Run(ctx context.Context, cmd string, stdin []byte) (stdout, stderr string, rc int, err error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return "", "", -1, cerr.Wrap(err, "opening session")
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-done:
		}
	}()

	err = session.Run(cmd)
	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		return outBuf.String(), errBuf.String(), 0, nil
	case errors.As(err, &exitErr):
		return outBuf.String(), errBuf.String(), exitErr.ExitStatus(), nil
	case ctx.Err() != nil:
		return outBuf.String(), errBuf.String(), -1, ctx.Err()
	default:
		return outBuf.String(), errBuf.String(), -1, cerr.Wrap(err, "running command")
	}
}

// Upload uses SFTP to write data to a remote file readable only by the
// connecting user.
func (c *Client) Upload(data []byte, remotePath string) error {
	sftpClient, err := sftp.NewClient(c.conn)
	if err != nil {
		return cerr.Wrap(err, "starting sftp")
	}
	defer sftpClient.Close()

	dstFile, err := sftpClient.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return cerr.Wrapf(err, "creating %s", remotePath)
	}
	defer dstFile.Close()

	if err := dstFile.Chmod(0o600); err != nil {
		return cerr.Wrapf(err, "chmod %s", remotePath)
	}
	if _, err := dstFile.Write(data); err != nil {
		return cerr.Wrapf(err, "writing %s", remotePath)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
