package builder

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

var (
	ErrInstanceLaunch            = fmt.Errorf("failed to launch instance")
	ErrInstanceLaunchNoInstances = fmt.Errorf("encountered no error during " +
		"instance launch, but no instance was actually created")
	ErrInstanceLaunchIDNil = fmt.Errorf("encountered no error during instance " +
		"launch, but the returned instance ID was nil")
	ErrInstanceLaunchZoneNil = fmt.Errorf("encountered no error during instance " +
		"launch, but the returned availability zone was nil")
)

// instanceLaunch starts exactly one instance of 'ami' and returns its id and
// availability zone; either field missing from the launch response is its
// own fatal condition. keyName and securityGroup are omitted when empty (the
// functional test boot of a freshly registered image needs neither).
func instanceLaunch(
	ctx context.Context,
	client API,
	ami string,
	instanceType types.InstanceType,
	keyName, securityGroup string,
) (id, zone string, err error) {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(ami),
		InstanceType: instanceType,
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
	}
	if keyName != "" {
		input.KeyName = aws.String(keyName)
	}
	if securityGroup != "" {
		input.SecurityGroups = []string{securityGroup}
	}

	result, err := client.RunInstances(ctx, input)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInstanceLaunch, err)
	}
	if len(result.Instances) < 1 {
		return "", "", ErrInstanceLaunchNoInstances
	}
	instance := &result.Instances[0]
	if instance.InstanceId == nil {
		return "", "", ErrInstanceLaunchIDNil
	}
	if instance.Placement == nil || instance.Placement.AvailabilityZone == nil {
		return "", "", ErrInstanceLaunchZoneNil
	}
	return *instance.InstanceId, *instance.Placement.AvailabilityZone, nil
}

var (
	ErrInstanceDescribe               = fmt.Errorf("failed to describe instance")
	ErrInstanceDescribeNoReservations = fmt.Errorf("describe instances call " +
		"produced no errors, but returned no reservations")
	ErrInstanceDescribeNoInstances = fmt.Errorf("describe instances call " +
		"produced no errors, but returned no instances")
)

func instanceDescribe(ctx context.Context, client API, instanceID string) (types.Instance, error) {
	result, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return types.Instance{}, fmt.Errorf("%w: %w", ErrInstanceDescribe, err)
	}
	if len(result.Reservations) == 0 {
		return types.Instance{}, ErrInstanceDescribeNoReservations
	}
	reservation := result.Reservations[0]
	if len(reservation.Instances) == 0 {
		return types.Instance{}, ErrInstanceDescribeNoInstances
	}
	return reservation.Instances[0], nil
}

var ErrInstanceStateNil = fmt.Errorf("describe instances call produced no " +
	"errors, but the returned instance state was nil")

func instanceState(ctx context.Context, client API, instanceID string) (types.InstanceStateName, error) {
	instance, err := instanceDescribe(ctx, client, instanceID)
	if err != nil {
		return "", err
	}
	if instance.State == nil {
		return "", ErrInstanceStateNil
	}
	return instance.State.Name, nil
}

var ErrRootVolumeNotFound = fmt.Errorf("instance has no volume attached at the root device")

// instanceRootVolumeID resolves the volume currently backing the instance's
// root device.
func instanceRootVolumeID(ctx context.Context, client API, instanceID, rootDevice string) (string, error) {
	instance, err := instanceDescribe(ctx, client, instanceID)
	if err != nil {
		return "", err
	}
	for _, mapping := range instance.BlockDeviceMappings {
		if mapping.DeviceName == nil || *mapping.DeviceName != rootDevice {
			continue
		}
		if mapping.Ebs == nil || mapping.Ebs.VolumeId == nil {
			break
		}
		return *mapping.Ebs.VolumeId, nil
	}
	return "", fmt.Errorf("%w: %s on %s", ErrRootVolumeNotFound, rootDevice, instanceID)
}

var (
	ErrInstanceStop      = fmt.Errorf("failed to stop instance")
	ErrInstanceTerminate = fmt.Errorf("failed to terminate instance")
)

func instanceStop(ctx context.Context, client API, instanceID string) error {
	_, err := client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstanceStop, err)
	}
	return nil
}

func instanceTerminate(ctx context.Context, client API, instanceID string) error {
	_, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstanceTerminate, err)
	}
	return nil
}

// awaitInstanceState polls until the instance reports the desired state.
func (b *Builder) awaitInstanceState(
	ctx context.Context,
	instanceID string,
	attempts int,
	desired types.InstanceStateName,
) error {
	return b.waiter(attempts).Wait(ctx,
		fmt.Sprintf("instance %s to reach %q", instanceID, desired),
		func(ctx context.Context) (bool, error) {
			current, err := instanceState(ctx, b.client, instanceID)
			if err != nil {
				return false, err
			}
			return current == desired, nil
		})
}
