package builder

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const virtualizationParavirtual = "paravirtual"

var (
	ErrImageRegister = fmt.Errorf("failed to register image")
	// ErrImageIDMissing reports a registration call that succeeded but
	// returned no image id. This is never retried.
	ErrImageIDMissing = fmt.Errorf("registration reported success, but the " +
		"returned image ID was missing")
	ErrImagePublish = fmt.Errorf("failed to make image public")
)

// imageRegisterFromSnapshot registers a paravirtual, EBS-backed image whose
// root device is restored from the completed snapshot. The boot-loader
// kernel makes the snapshot-derived image bootable.
func imageRegisterFromSnapshot(
	ctx context.Context,
	client API,
	name, description, arch, kernelID, snapshotID string,
) (string, error) {
	result, err := client.RegisterImage(ctx, &ec2.RegisterImageInput{
		Name:               aws.String(name),
		Description:        aws.String(description),
		Architecture:       types.ArchitectureValues(arch),
		KernelId:           aws.String(kernelID),
		VirtualizationType: aws.String(virtualizationParavirtual),
		RootDeviceName:     aws.String(deviceRoot),
		BlockDeviceMappings: []types.BlockDeviceMapping{{
			DeviceName: aws.String(deviceRoot),
			Ebs: &types.EbsBlockDevice{
				SnapshotId:          aws.String(snapshotID),
				DeleteOnTermination: aws.Bool(true),
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImageRegister, err)
	}
	if result.ImageId == nil || *result.ImageId == "" {
		return "", ErrImageIDMissing
	}
	return *result.ImageId, nil
}

// imageCreateFromInstance creates an image directly from the stopped builder
// instance, whose root device has been swapped to the written volume.
func imageCreateFromInstance(
	ctx context.Context,
	client API,
	name, description, instanceID string,
) (string, error) {
	result, err := client.CreateImage(ctx, &ec2.CreateImageInput{
		InstanceId:  aws.String(instanceID),
		Name:        aws.String(name),
		Description: aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImageRegister, err)
	}
	if result.ImageId == nil || *result.ImageId == "" {
		return "", ErrImageIDMissing
	}
	return *result.ImageId, nil
}

// imagePublish grants the 'all' group launch permission on the image.
func imagePublish(ctx context.Context, client API, imageID string) error {
	_, err := client.ModifyImageAttribute(ctx, &ec2.ModifyImageAttributeInput{
		ImageId: aws.String(imageID),
		LaunchPermission: &types.LaunchPermissionModifications{
			Add: []types.LaunchPermission{{Group: types.PermissionGroupAll}},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrImagePublish, imageID, err)
	}
	return nil
}
