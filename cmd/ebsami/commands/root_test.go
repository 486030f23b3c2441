package commands

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ebsami/ebsami/internal/builder"
	"github.com/ebsami/ebsami/internal/catalog"
	"github.com/ebsami/ebsami/internal/config"
	"github.com/ebsami/ebsami/internal/remote"
)

func TestExitCode(t *testing.T) {
	wrap := func(sentinel error) error {
		return fmt.Errorf("%w: %w", builder.ErrProvisioning, sentinel)
	}
	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"credential-missing", fmt.Errorf("%w: AWS_USER_ID", config.ErrCredentialMissing), 3},
		{"tool-missing", wrap(builder.ErrToolMissing), 2},
		{"ssh-connect-timeout", wrap(remote.ErrConnectTimeout), 1},
		{"unknown-region", fmt.Errorf("%w: %q", catalog.ErrUnknownRegion, "mars-north-1"), 1},
		{"unknown-arch", fmt.Errorf("%w: %q", catalog.ErrUnknownArch, "sparc"), 1},
		{"provisioning-failure", wrap(fmt.Errorf("boom")), 10},
		{"anything-else", fmt.Errorf("usage"), 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}
