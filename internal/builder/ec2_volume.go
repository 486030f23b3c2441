package builder

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

var (
	ErrVolumeCreate      = fmt.Errorf("failed to create volume")
	ErrVolumeCreateIDNil = fmt.Errorf("encountered no error during volume " +
		"creation, but the returned volume ID was nil")
)

func volumeCreate(ctx context.Context, client API, zone string, sizeGiB int32) (string, error) {
	result, err := client.CreateVolume(ctx, &ec2.CreateVolumeInput{
		AvailabilityZone: aws.String(zone),
		Size:             aws.Int32(sizeGiB),
		VolumeType:       types.VolumeTypeStandard,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVolumeCreate, err)
	}
	if result.VolumeId == nil {
		return "", ErrVolumeCreateIDNil
	}
	return *result.VolumeId, nil
}

var (
	ErrVolumeAttach = fmt.Errorf("failed to attach volume")
	ErrVolumeDetach = fmt.Errorf("failed to detach volume")
	ErrVolumeDelete = fmt.Errorf("failed to delete volume")
)

func volumeAttach(ctx context.Context, client API, volumeID, instanceID, device string) error {
	_, err := client.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(device),
	})
	if err != nil {
		return fmt.Errorf("%w: %s at %s: %w", ErrVolumeAttach, volumeID, device, err)
	}
	return nil
}

func volumeDetach(ctx context.Context, client API, volumeID string) error {
	_, err := client.DetachVolume(ctx, &ec2.DetachVolumeInput{
		VolumeId: aws.String(volumeID),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVolumeDetach, volumeID, err)
	}
	return nil
}

func volumeDelete(ctx context.Context, client API, volumeID string) error {
	_, err := client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{
		VolumeId: aws.String(volumeID),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVolumeDelete, volumeID, err)
	}
	return nil
}

var (
	ErrVolumeDescribe = fmt.Errorf("failed to describe volume")
	ErrVolumeNotFound = fmt.Errorf("describe volumes call produced no errors, but returned no volumes")
)

func volumeDescribe(ctx context.Context, client API, volumeID string) (types.Volume, error) {
	result, err := client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		VolumeIds: []string{volumeID},
	})
	if err != nil {
		return types.Volume{}, fmt.Errorf("%w: %w", ErrVolumeDescribe, err)
	}
	if len(result.Volumes) == 0 {
		return types.Volume{}, ErrVolumeNotFound
	}
	return result.Volumes[0], nil
}

// awaitVolumeState polls until the volume reports the desired state.
func (b *Builder) awaitVolumeState(
	ctx context.Context,
	volumeID string,
	attempts int,
	desired types.VolumeState,
) error {
	return b.waiter(attempts).Wait(ctx,
		fmt.Sprintf("volume %s to reach %q", volumeID, desired),
		func(ctx context.Context) (bool, error) {
			volume, err := volumeDescribe(ctx, b.client, volumeID)
			if err != nil {
				return false, err
			}
			return volume.State == desired, nil
		})
}

// awaitVolumeAttached polls until the volume's attachment reports 'attached'.
func (b *Builder) awaitVolumeAttached(ctx context.Context, volumeID string, attempts int) error {
	return b.waiter(attempts).Wait(ctx,
		fmt.Sprintf("volume %s to attach", volumeID),
		func(ctx context.Context) (bool, error) {
			volume, err := volumeDescribe(ctx, b.client, volumeID)
			if err != nil {
				return false, err
			}
			for _, attachment := range volume.Attachments {
				if attachment.State == types.VolumeAttachmentStateAttached {
					return true, nil
				}
			}
			return false, nil
		})
}
