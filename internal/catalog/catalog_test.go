package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookups(t *testing.T) {
	t.Run("us-east-1-x86_64", func(t *testing.T) {
		ami, err := BaseImage("us-east-1", ArchX8664)
		require.NoError(t, err)
		assert.Equal(t, "ami-e1a08288", ami)

		aki, err := Kernel("us-east-1", ArchX8664)
		require.NoError(t, err)
		assert.Equal(t, "aki-427d952b", aki)
	})

	t.Run("unknown-region", func(t *testing.T) {
		_, err := BaseImage("mars-north-1", ArchI386)
		require.ErrorIs(t, err, ErrUnknownRegion)
		_, err = Kernel("mars-north-1", ArchI386)
		require.ErrorIs(t, err, ErrUnknownRegion)
	})

	t.Run("unknown-arch", func(t *testing.T) {
		_, err := BaseImage("us-east-1", "sparc")
		require.ErrorIs(t, err, ErrUnknownArch)
		_, err = InstanceType("sparc")
		require.ErrorIs(t, err, ErrUnknownArch)
	})

	t.Run("instance-type-per-arch", func(t *testing.T) {
		it, err := InstanceType(ArchI386)
		require.NoError(t, err)
		assert.Equal(t, "m1.small", it)
		it, err = InstanceType(ArchX8664)
		require.NoError(t, err)
		assert.Equal(t, "m1.large", it)
	})

	t.Run("every-region-has-both-ids", func(t *testing.T) {
		for region, archs := range regions {
			for arch, ids := range archs {
				assert.NotEmpty(t, ids.baseAMI, "%s/%s base AMI", region, arch)
				assert.NotEmpty(t, ids.kernel, "%s/%s kernel", region, arch)
			}
		}
	})
}

func TestIsSwapFamily(t *testing.T) {
	assert.True(t, IsSwapFamily("SLES11_SP1"))
	assert.True(t, IsSwapFamily("SLES11_SP2"))
	assert.False(t, IsSwapFamily("SLES10_SP4"))
	assert.False(t, IsSwapFamily("openSUSE_12"))
	assert.False(t, IsSwapFamily(""))
}
