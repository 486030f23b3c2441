package builder

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

var (
	ErrSnapshotCreate      = fmt.Errorf("failed to create snapshot")
	ErrSnapshotCreateIDNil = fmt.Errorf("encountered no error during snapshot " +
		"creation, but the returned snapshot ID was nil")
	ErrSnapshotDelete   = fmt.Errorf("failed to delete snapshot")
	ErrSnapshotDescribe = fmt.Errorf("failed to describe snapshot")
	ErrSnapshotNotFound = fmt.Errorf("describe snapshots call produced no " +
		"errors, but returned no snapshots")
)

func snapshotCreate(ctx context.Context, client API, volumeID, description string) (string, error) {
	result, err := client.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
		VolumeId:    aws.String(volumeID),
		Description: aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSnapshotCreate, err)
	}
	if result.SnapshotId == nil {
		return "", ErrSnapshotCreateIDNil
	}
	return *result.SnapshotId, nil
}

func snapshotDelete(ctx context.Context, client API, snapshotID string) error {
	_, err := client.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSnapshotDelete, snapshotID, err)
	}
	return nil
}

func snapshotState(ctx context.Context, client API, snapshotID string) (types.SnapshotState, error) {
	result, err := client.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{
		SnapshotIds: []string{snapshotID},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSnapshotDescribe, err)
	}
	if len(result.Snapshots) == 0 {
		return "", ErrSnapshotNotFound
	}
	return result.Snapshots[0].State, nil
}

// awaitSnapshotCompleted polls until the snapshot reports 'completed'.
func (b *Builder) awaitSnapshotCompleted(ctx context.Context, snapshotID string, attempts int) error {
	return b.waiter(attempts).Wait(ctx,
		fmt.Sprintf("snapshot %s to complete", snapshotID),
		func(ctx context.Context) (bool, error) {
			current, err := snapshotState(ctx, b.client, snapshotID)
			if err != nil {
				return false, err
			}
			return current == types.SnapshotStateCompleted, nil
		})
}
