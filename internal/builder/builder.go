package builder

import (
	"context"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/ebsami/ebsami/internal/catalog"
	"github.com/ebsami/ebsami/internal/poll"
	"github.com/ebsami/ebsami/internal/remote"
	"github.com/ebsami/ebsami/internal/ssh"
	"github.com/ebsami/ebsami/internal/tarball"
)

const (
	securityGroupName = "ebsami"

	// The image volume is requested at /dev/sdh; recent kernels surface it as
	// /dev/xvdh, so both are probed.
	deviceImage    = "/dev/sdh"
	deviceImageAlt = "/dev/xvdh"
	deviceRoot     = "/dev/sda1"

	defaultPollInterval = 3 * time.Second

	// Attempt budgets for the bounded polls.
	attemptsInstance  = 60
	attemptsVolume    = 60
	attemptsSnapshot  = 100
	attemptsDevice    = 30
	attemptsTerminate = 60
)

// Remote is the session surface the pipeline needs from the builder
// instance. Satisfied by *remote.Executor; tests substitute a script.
type Remote interface {
	WaitReady(ctx context.Context) error
	Run(ctx context.Context, cmd string) (string, error)
	Push(ctx context.Context, localPath string) (string, error)
}

// Builder drives one tarball through upload, volume write and image
// registration, then tears down everything it created.
type Builder struct {
	cfg    Config
	client API

	// Resolved from the catalog at construction.
	baseAMI      string
	kernelID     string
	instanceType string

	registrar registrar
	keys      ssh.ED25519KeyPair
	res       Resources

	// Seams for tests. Production values are set by New.
	pollInterval time.Duration
	sleep        func(time.Duration)
	now          func() time.Time
	newRemote    func(host string, port uint16, user string, signer gossh.Signer) Remote
	measure      func(path string) (int32, error)
}

// New resolves the run context against the region catalog and selects the
// registration strategy for the base OS family. Catalog misses (unknown
// region or architecture) are reported before any resource is touched.
func New(client API, cfg Config) (*Builder, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	baseAMI, err := catalog.BaseImage(cfg.Region, cfg.Arch)
	if err != nil {
		return nil, err
	}
	kernelID, err := catalog.Kernel(cfg.Region, cfg.Arch)
	if err != nil {
		return nil, err
	}
	instanceType, err := catalog.InstanceType(cfg.Arch)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		cfg:          cfg,
		client:       client,
		baseAMI:      baseAMI,
		kernelID:     kernelID,
		instanceType: instanceType,
		pollInterval: defaultPollInterval,
		now:          time.Now,
		measure:      tarball.MeasuredGiB,
		newRemote: func(host string, port uint16, user string, signer gossh.Signer) Remote {
			return remote.New(host, port, user, signer)
		},
	}
	if catalog.IsSwapFamily(cfg.Base) {
		b.registrar = swapRegistrar{}
	} else {
		b.registrar = snapshotRegistrar{}
	}
	return b, nil
}

// Resources returns the run's resource ledger, populated as the pipeline
// progresses and drained by teardown.
func (b *Builder) Resources() Resources {
	return b.res
}

func (b *Builder) waiter(attempts int) poll.Waiter {
	return poll.Waiter{
		Attempts: attempts,
		Interval: b.pollInterval,
		Sleep:    b.sleep,
	}
}
