package builder

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeardown(t *testing.T) {
	t.Run("empty-ledger-makes-no-calls", func(t *testing.T) {
		api := newFakeAPI()
		b, err := newTestBuilder(api, &fakeRemote{}, testConfig("SLES12_SP1"))
		require.NoError(t, err)

		require.NoError(t, b.teardown(t.Context()))
		assert.Empty(t, api.calls)
	})
	t.Run("snapshot-survives-once-image-registered", func(t *testing.T) {
		api := newFakeAPI()
		b, err := newTestBuilder(api, &fakeRemote{}, testConfig("SLES12_SP1"))
		require.NoError(t, err)
		b.res.SnapshotID = "snap-01"
		b.res.ImageID = "ami-new01"

		require.NoError(t, b.teardown(t.Context()))
		assert.False(t, api.called("DeleteSnapshot"))
		assert.Equal(t, "snap-01", b.res.SnapshotID)
	})
	t.Run("orphan-snapshot-is-reclaimed", func(t *testing.T) {
		api := newFakeAPI()
		b, err := newTestBuilder(api, &fakeRemote{}, testConfig("SLES12_SP1"))
		require.NoError(t, err)
		b.res.SnapshotID = "snap-01"

		require.NoError(t, b.teardown(t.Context()))
		assert.True(t, api.called("DeleteSnapshot"))
		assert.Empty(t, b.res.SnapshotID)
	})
	t.Run("sub-failure-continues-and-reports", func(t *testing.T) {
		api := newFakeAPI()
		boom := fmt.Errorf("boom")
		api.failOn["TerminateInstances"] = boom
		api.attachments["vol-01"] = ""

		b, err := newTestBuilder(api, &fakeRemote{}, testConfig("SLES12_SP1"))
		require.NoError(t, err)
		b.res.InstanceID = "i-01"
		b.res.ImageVolumeID = "vol-01"
		b.res.KeyName = "ebsami-test"

		err = b.teardown(t.Context())
		require.ErrorIs(t, err, boom)

		// The stuck instance did not strand the volume or the keypair.
		assert.True(t, api.called("DeleteVolume"))
		assert.True(t, api.called("DeleteKeyPair"))
		assert.Empty(t, b.res.ImageVolumeID)
		assert.Empty(t, b.res.KeyName)
		// The instance stays on the ledger for the operator to find.
		assert.Equal(t, "i-01", b.res.InstanceID)
	})
	t.Run("second-pass-is-a-no-op", func(t *testing.T) {
		api := newFakeAPI()
		b, err := newTestBuilder(api, &fakeRemote{}, testConfig("SLES12_SP1"))
		require.NoError(t, err)
		b.res.KeyName = "ebsami-test"

		require.NoError(t, b.teardown(t.Context()))
		calls := len(api.calls)
		require.NoError(t, b.teardown(t.Context()))
		assert.Equal(t, calls, len(api.calls))
	})
}
