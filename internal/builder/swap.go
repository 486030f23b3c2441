package builder

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// swapRegistrar handles base families whose images cannot boot from a
// pv-grub registered snapshot. The builder is stopped, its original root
// volume is detached and the written volume takes its place, then the image
// is created from the instance itself so the provider derives boot metadata
// from the builder.
type swapRegistrar struct{}

func (swapRegistrar) finalize(ctx context.Context, b *Builder, volumeID string) (string, error) {
	log := clog.FromContext(ctx).With("instance_id", b.res.InstanceID)

	log.Info("stopping builder instance for root device swap")
	if err := instanceStop(ctx, b.client, b.res.InstanceID); err != nil {
		return "", err
	}
	if err := b.awaitInstanceState(ctx, b.res.InstanceID, attemptsInstance,
		types.InstanceStateNameStopped); err != nil {
		return "", err
	}

	rootVolumeID, err := instanceRootVolumeID(ctx, b.client, b.res.InstanceID, deviceRoot)
	if err != nil {
		return "", err
	}
	log.Info("detaching original root volume", "volume_id", rootVolumeID)
	if err := volumeDetach(ctx, b.client, rootVolumeID); err != nil {
		return "", err
	}
	if err := b.awaitVolumeState(ctx, rootVolumeID, attemptsVolume, types.VolumeStateAvailable); err != nil {
		return "", err
	}
	b.res.RootVolumeID = rootVolumeID

	log.Info("swapping written volume in as root device", "volume_id", volumeID)
	if err := volumeDetach(ctx, b.client, volumeID); err != nil {
		return "", err
	}
	if err := b.awaitVolumeState(ctx, volumeID, attemptsVolume, types.VolumeStateAvailable); err != nil {
		return "", err
	}
	if err := volumeAttach(ctx, b.client, volumeID, b.res.InstanceID, deviceRoot); err != nil {
		return "", err
	}
	if err := b.awaitVolumeAttached(ctx, volumeID, attemptsVolume); err != nil {
		return "", err
	}

	return b.registerWithRetry(ctx, func(name string) (string, error) {
		return imageCreateFromInstance(ctx, b.client, name, b.cfg.Description, b.res.InstanceID)
	})
}
