package builder

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"

	"github.com/ebsami/ebsami/internal/poll"
)

// teardown reclaims every resource the run has created, in dependency order:
// instance first (releasing its volume attachments), then volumes, then the
// snapshot while no image owns it, then the keypair. Every step is attempted
// regardless of earlier failures; the security group is shared and is left
// in place. Fields are drained as each removal succeeds, so a second pass
// over the same Resources is a no-op.
func (b *Builder) teardown(ctx context.Context) error {
	log := clog.FromContext(ctx)
	var stack Stack

	// Pushed first, runs last.
	if b.res.KeyName != "" {
		stack.Push(func(ctx context.Context) error {
			if err := keypairDelete(ctx, b.client, b.res.KeyName); err != nil {
				return err
			}
			if b.res.KeyPath != "" {
				if err := os.Remove(b.res.KeyPath); err != nil {
					return err
				}
				b.res.KeyPath = ""
			}
			log.Info("deleted keypair", "key_name", b.res.KeyName)
			b.res.KeyName = ""
			return nil
		})
	}

	// A snapshot is reclaimed only while no image has been registered from
	// it: afterwards it backs the image and must survive.
	if b.res.SnapshotID != "" && b.res.ImageID == "" {
		stack.Push(func(ctx context.Context) error {
			if err := snapshotDelete(ctx, b.client, b.res.SnapshotID); err != nil {
				return err
			}
			log.Info("deleted snapshot", "snapshot_id", b.res.SnapshotID)
			b.res.SnapshotID = ""
			return nil
		})
	}

	if b.res.ImageVolumeID != "" {
		stack.Push(func(ctx context.Context) error {
			if err := b.removeVolume(ctx, b.res.ImageVolumeID); err != nil {
				return err
			}
			b.res.ImageVolumeID = ""
			return nil
		})
	}

	if b.res.RootVolumeID != "" {
		stack.Push(func(ctx context.Context) error {
			if err := b.removeVolume(ctx, b.res.RootVolumeID); err != nil {
				return err
			}
			b.res.RootVolumeID = ""
			return nil
		})
	}

	// Pushed last, runs first.
	if b.res.InstanceID != "" {
		stack.Push(func(ctx context.Context) error {
			if err := instanceTerminate(ctx, b.client, b.res.InstanceID); err != nil {
				return err
			}
			err := b.awaitInstanceState(ctx, b.res.InstanceID, attemptsTerminate,
				types.InstanceStateNameTerminated)
			if errors.Is(err, poll.ErrTimedOut) {
				log.Warn("could not confirm instance removal", "instance_id", b.res.InstanceID)
			} else if err != nil {
				return err
			} else {
				log.Info("terminated instance", "instance_id", b.res.InstanceID)
			}
			b.res.InstanceID = ""
			return nil
		})
	}

	return stack.Destroy(ctx)
}

// removeVolume waits for the volume to settle back to 'available' (instance
// termination releases attachments asynchronously) and deletes it.
func (b *Builder) removeVolume(ctx context.Context, volumeID string) error {
	volume, err := volumeDescribe(ctx, b.client, volumeID)
	if err != nil {
		return err
	}
	if volume.State != types.VolumeStateAvailable {
		if err := b.awaitVolumeState(ctx, volumeID, attemptsVolume, types.VolumeStateAvailable); err != nil {
			return err
		}
	}
	if err := volumeDelete(ctx, b.client, volumeID); err != nil {
		return err
	}
	clog.FromContext(ctx).Info("deleted volume", "volume_id", volumeID)
	return nil
}
