// remote executes commands and copies files on the provisioned builder
// instance over SSH. Connection policy is fixed: host key verification is
// bypassed (the instance is freshly created and has no prior identity), each
// connect attempt is bounded, and initial reachability is awaited with the
// standard bounded poll.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	gossh "golang.org/x/crypto/ssh"

	"github.com/ebsami/ebsami/internal/poll"
	"github.com/ebsami/ebsami/internal/ssh"
)

const (
	defaultAttempts       = 50
	defaultInterval       = 3 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

var ErrConnectTimeout = fmt.Errorf("failed to connect via SSH (timed out)")

// Executor holds the connection parameters for one builder instance.
type Executor struct {
	Host   string
	Port   uint16
	User   string
	Signer gossh.Signer

	ConnectTimeout time.Duration
	Attempts       int
	Interval       time.Duration
	Sleep          func(time.Duration)

	// probe is swappable in tests; the default performs a full authenticated
	// round-trip.
	probe func(ctx context.Context) bool
}

// New constructs an Executor with the fixed connection policy defaults.
func New(host string, port uint16, user string, signer gossh.Signer) *Executor {
	return &Executor{
		Host:           host,
		Port:           port,
		User:           user,
		Signer:         signer,
		ConnectTimeout: defaultConnectTimeout,
		Attempts:       defaultAttempts,
		Interval:       defaultInterval,
	}
}

func (e *Executor) connect() (*gossh.Client, error) {
	return ssh.Connect(e.Host, e.Port, e.User, e.Signer, e.ConnectTimeout)
}

// WaitReady repeatedly attempts a trivial authenticated round-trip until it
// succeeds or the attempt budget is exhausted, in which case it reports
// ErrConnectTimeout.
func (e *Executor) WaitReady(ctx context.Context) error {
	log := clog.FromContext(ctx).With("host", e.Host, "user", e.User)
	log.Info("waiting for instance to become reachable via SSH")

	probe := e.probe
	if probe == nil {
		probe = func(ctx context.Context) bool {
			client, err := e.connect()
			if err != nil {
				log.Debug("instance not yet reachable", "error", err)
				return false
			}
			defer client.Close()
			if _, err := ssh.Exec(client, "true"); err != nil {
				log.Debug("connected but round-trip failed", "error", err)
				return false
			}
			return true
		}
	}

	waiter := poll.Waiter{Attempts: e.Attempts, Interval: e.Interval, Sleep: e.Sleep}
	err := waiter.Wait(ctx, "SSH reachability", func(ctx context.Context) (bool, error) {
		return probe(ctx), nil
	})
	if errors.Is(err, poll.ErrTimedOut) {
		return fmt.Errorf("%w: %s", ErrConnectTimeout, e.Host)
	}
	if err != nil {
		return err
	}
	log.Info("instance is reachable via SSH")
	return nil
}

// Run executes a command non-interactively and returns its combined output.
// A non-zero exit is an error carrying the captured output verbatim.
func (e *Executor) Run(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clog.FromContext(ctx).Debug("executing remote command", "cmd", cmd)
	client, err := e.connect()
	if err != nil {
		return "", err
	}
	defer client.Close()
	return ssh.Exec(client, cmd)
}

// Push transfers the file at localPath to the remote home directory and
// returns the remote path.
func (e *Executor) Push(ctx context.Context, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	log := clog.FromContext(ctx).With("local_path", localPath)
	log.Info("transferring image tarball to instance")
	client, err := e.connect()
	if err != nil {
		return "", err
	}
	defer client.Close()
	remotePath, err := ssh.Push(client, localPath)
	if err != nil {
		return "", err
	}
	log.Info("transfer complete", "remote_path", remotePath)
	return remotePath, nil
}
