package builder

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// snapshotRegistrar is the default path: detach the written volume, snapshot
// it and register a pv-grub image backed by the snapshot. The snapshot is
// recorded so teardown can reclaim it while no image owns it yet.
type snapshotRegistrar struct{}

func (snapshotRegistrar) finalize(ctx context.Context, b *Builder, volumeID string) (string, error) {
	log := clog.FromContext(ctx).With("volume_id", volumeID)

	log.Info("detaching image volume")
	if err := volumeDetach(ctx, b.client, volumeID); err != nil {
		return "", err
	}
	if err := b.awaitVolumeState(ctx, volumeID, attemptsVolume, types.VolumeStateAvailable); err != nil {
		return "", err
	}

	log.Info("creating snapshot")
	snapshotID, err := snapshotCreate(ctx, b.client, volumeID, b.cfg.Description)
	if err != nil {
		return "", err
	}
	b.res.SnapshotID = snapshotID
	if err := b.awaitSnapshotCompleted(ctx, snapshotID, attemptsSnapshot); err != nil {
		return "", err
	}
	log.Info("snapshot complete", "snapshot_id", snapshotID)

	return b.registerWithRetry(ctx, func(name string) (string, error) {
		return imageRegisterFromSnapshot(ctx, b.client,
			name, b.cfg.Description, b.cfg.Arch, b.kernelID, snapshotID)
	})
}
