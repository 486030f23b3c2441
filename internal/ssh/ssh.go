package ssh

// ssh.go implements a facade over 'x/crypto/ssh' for the three things the
// pipeline does on the builder instance: connect, execute a command, and
// stream a local file up.

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"
	"golang.org/x/crypto/ssh"
)

var (
	ErrSSHFailedDial = fmt.Errorf("failed to establish SSH connection")
	ErrSessionInit   = fmt.Errorf("failed to begin SSH session")
	ErrCMDExec       = fmt.Errorf("failed to execute SSH command")
	ErrLocalFileOpen = fmt.Errorf("failed to open local file for transfer")
	ErrFileTransfer  = fmt.Errorf("failed to transfer file to remote host")
)

// Connect establishes an SSH connection to 'host' on TCP port 'port',
// authenticating as 'user' with 'signer'.
//
// The target is always a freshly launched instance with no prior known
// identity, so host key verification is deliberately bypassed. 'timeout'
// bounds the underlying TCP connect.
func Connect(host string, port uint16, user string, signer ssh.Signer, timeout time.Duration) (*ssh.Client, error) {
	if port == 0 {
		port = 22
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	target := net.JoinHostPort(host, strconv.Itoa(int(port)))
	client, err := ssh.Dial("tcp", target, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSSHFailedDial, err)
	}
	return client, nil
}

// Exec executes a single command non-interactively, returning the combined
// standard output and error streams. On non-zero exit the combined output is
// still returned so callers can surface it verbatim.
func Exec(client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSessionInit, err)
	}
	defer session.Close()
	combined := new(bytes.Buffer)
	session.Stdout = combined
	session.Stderr = combined
	if err := session.Run(cmd); err != nil {
		return combined.String(), fmt.Errorf("%w: %q: %w", ErrCMDExec, cmd, err)
	}
	return combined.String(), nil
}

// Push streams the local file at 'localPath' into the remote user's home
// directory under its base name, returning the remote (relative) path.
//
// The transfer is a plain stdin pipe into 'cat' on the remote side, the same
// session mechanics Exec uses. No sftp subsystem is required on the image.
func Push(client *ssh.Client, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLocalFileOpen, err)
	}
	defer f.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSessionInit, err)
	}
	defer session.Close()

	remotePath := filepath.Base(localPath)
	session.Stdin = f
	stderr := new(bytes.Buffer)
	session.Stderr = stderr
	cmd := "cat > " + shellquote.Join(remotePath)
	if err := session.Run(cmd); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFileTransfer, stderr.String(), err)
	}
	return remotePath, nil
}
