package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	gossh "golang.org/x/crypto/ssh"
)

// fakeAPI is a scripted control plane. It records every call, keeps just
// enough state for the pipeline's polls to converge (instance state, volume
// attachments) and lets a test fail any one call by name.
type fakeAPI struct {
	calls []string

	instanceState types.InstanceStateName
	rootVolume    string
	attachments   map[string]string // volume id -> device, "" once detached
	volumeSizes   map[string]int32

	launches  int
	snapshots int
	images    int

	failOn        map[string]error
	registerImage func(in *ec2.RegisterImageInput) (*ec2.RegisterImageOutput, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		attachments: map[string]string{},
		volumeSizes: map[string]int32{},
		failOn:      map[string]error{},
	}
}

func (f *fakeAPI) record(name string) error {
	f.calls = append(f.calls, name)
	return f.failOn[name]
}

func (f *fakeAPI) count(name string) int {
	n := 0
	for _, call := range f.calls {
		if call == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) called(name string) bool { return f.count(name) > 0 }

func (f *fakeAPI) CreateSecurityGroup(ctx context.Context, in *ec2.CreateSecurityGroupInput, opts ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	return &ec2.CreateSecurityGroupOutput{}, f.record("CreateSecurityGroup")
}

func (f *fakeAPI) AuthorizeSecurityGroupIngress(ctx context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, opts ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, f.record("AuthorizeSecurityGroupIngress")
}

func (f *fakeAPI) ImportKeyPair(ctx context.Context, in *ec2.ImportKeyPairInput, opts ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	return &ec2.ImportKeyPairOutput{}, f.record("ImportKeyPair")
}

func (f *fakeAPI) DeleteKeyPair(ctx context.Context, in *ec2.DeleteKeyPairInput, opts ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	return &ec2.DeleteKeyPairOutput{}, f.record("DeleteKeyPair")
}

func (f *fakeAPI) RunInstances(ctx context.Context, in *ec2.RunInstancesInput, opts ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	if err := f.record("RunInstances"); err != nil {
		return nil, err
	}
	f.launches++
	f.instanceState = types.InstanceStateNameRunning
	f.rootVolume = fmt.Sprintf("vol-root%d", f.launches)
	f.attachments[f.rootVolume] = deviceRoot
	return &ec2.RunInstancesOutput{
		Instances: []types.Instance{{
			InstanceId: aws.String(fmt.Sprintf("i-%02d", f.launches)),
			Placement:  &types.Placement{AvailabilityZone: aws.String("us-east-1a")},
		}},
	}, nil
}

func (f *fakeAPI) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if err := f.record("DescribeInstances"); err != nil {
		return nil, err
	}
	var mappings []types.InstanceBlockDeviceMapping
	for volumeID, device := range f.attachments {
		if device == "" {
			continue
		}
		mappings = append(mappings, types.InstanceBlockDeviceMapping{
			DeviceName: aws.String(device),
			Ebs:        &types.EbsInstanceBlockDevice{VolumeId: aws.String(volumeID)},
		})
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{
			Instances: []types.Instance{{
				State:               &types.InstanceState{Name: f.instanceState},
				PublicDnsName:       aws.String("ec2-198-51-100-1.compute-1.amazonaws.com"),
				BlockDeviceMappings: mappings,
			}},
		}},
	}, nil
}

func (f *fakeAPI) StopInstances(ctx context.Context, in *ec2.StopInstancesInput, opts ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	if err := f.record("StopInstances"); err != nil {
		return nil, err
	}
	f.instanceState = types.InstanceStateNameStopped
	return &ec2.StopInstancesOutput{}, nil
}

func (f *fakeAPI) TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, opts ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	if err := f.record("TerminateInstances"); err != nil {
		return nil, err
	}
	f.instanceState = types.InstanceStateNameTerminated
	for volumeID, device := range f.attachments {
		if device != "" {
			f.attachments[volumeID] = ""
		}
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeAPI) CreateVolume(ctx context.Context, in *ec2.CreateVolumeInput, opts ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error) {
	if err := f.record("CreateVolume"); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("vol-%02d", len(f.volumeSizes)+1)
	f.attachments[id] = ""
	f.volumeSizes[id] = aws.ToInt32(in.Size)
	return &ec2.CreateVolumeOutput{VolumeId: aws.String(id)}, nil
}

func (f *fakeAPI) DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, opts ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	if err := f.record("DescribeVolumes"); err != nil {
		return nil, err
	}
	id := in.VolumeIds[0]
	device, ok := f.attachments[id]
	if !ok {
		return &ec2.DescribeVolumesOutput{}, nil
	}
	volume := types.Volume{VolumeId: aws.String(id), State: types.VolumeStateAvailable}
	if device != "" {
		volume.State = types.VolumeStateInUse
		volume.Attachments = []types.VolumeAttachment{{
			Device: aws.String(device),
			State:  types.VolumeAttachmentStateAttached,
		}}
	}
	return &ec2.DescribeVolumesOutput{Volumes: []types.Volume{volume}}, nil
}

func (f *fakeAPI) AttachVolume(ctx context.Context, in *ec2.AttachVolumeInput, opts ...func(*ec2.Options)) (*ec2.AttachVolumeOutput, error) {
	if err := f.record("AttachVolume"); err != nil {
		return nil, err
	}
	f.attachments[aws.ToString(in.VolumeId)] = aws.ToString(in.Device)
	return &ec2.AttachVolumeOutput{}, nil
}

func (f *fakeAPI) DetachVolume(ctx context.Context, in *ec2.DetachVolumeInput, opts ...func(*ec2.Options)) (*ec2.DetachVolumeOutput, error) {
	if err := f.record("DetachVolume"); err != nil {
		return nil, err
	}
	f.attachments[aws.ToString(in.VolumeId)] = ""
	return &ec2.DetachVolumeOutput{}, nil
}

func (f *fakeAPI) DeleteVolume(ctx context.Context, in *ec2.DeleteVolumeInput, opts ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
	if err := f.record("DeleteVolume"); err != nil {
		return nil, err
	}
	delete(f.attachments, aws.ToString(in.VolumeId))
	return &ec2.DeleteVolumeOutput{}, nil
}

func (f *fakeAPI) CreateSnapshot(ctx context.Context, in *ec2.CreateSnapshotInput, opts ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error) {
	if err := f.record("CreateSnapshot"); err != nil {
		return nil, err
	}
	f.snapshots++
	return &ec2.CreateSnapshotOutput{
		SnapshotId: aws.String(fmt.Sprintf("snap-%02d", f.snapshots)),
	}, nil
}

func (f *fakeAPI) DescribeSnapshots(ctx context.Context, in *ec2.DescribeSnapshotsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	if err := f.record("DescribeSnapshots"); err != nil {
		return nil, err
	}
	return &ec2.DescribeSnapshotsOutput{
		Snapshots: []types.Snapshot{{State: types.SnapshotStateCompleted}},
	}, nil
}

func (f *fakeAPI) DeleteSnapshot(ctx context.Context, in *ec2.DeleteSnapshotInput, opts ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error) {
	return &ec2.DeleteSnapshotOutput{}, f.record("DeleteSnapshot")
}

func (f *fakeAPI) RegisterImage(ctx context.Context, in *ec2.RegisterImageInput, opts ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error) {
	if err := f.record("RegisterImage"); err != nil {
		return nil, err
	}
	if f.registerImage != nil {
		return f.registerImage(in)
	}
	f.images++
	return &ec2.RegisterImageOutput{ImageId: aws.String(fmt.Sprintf("ami-new%02d", f.images))}, nil
}

func (f *fakeAPI) CreateImage(ctx context.Context, in *ec2.CreateImageInput, opts ...func(*ec2.Options)) (*ec2.CreateImageOutput, error) {
	if err := f.record("CreateImage"); err != nil {
		return nil, err
	}
	f.images++
	return &ec2.CreateImageOutput{ImageId: aws.String(fmt.Sprintf("ami-new%02d", f.images))}, nil
}

func (f *fakeAPI) ModifyImageAttribute(ctx context.Context, in *ec2.ModifyImageAttributeInput, opts ...func(*ec2.Options)) (*ec2.ModifyImageAttributeOutput, error) {
	return &ec2.ModifyImageAttributeOutput{}, f.record("ModifyImageAttribute")
}

var _ API = (*fakeAPI)(nil)

// fakeRemote is a scripted builder-instance session.
type fakeRemote struct {
	commands []string
	readyErr error
	runHook  func(cmd string) (string, error)
}

func (f *fakeRemote) WaitReady(ctx context.Context) error { return f.readyErr }

func (f *fakeRemote) Run(ctx context.Context, cmd string) (string, error) {
	f.commands = append(f.commands, cmd)
	if f.runHook != nil {
		return f.runHook(cmd)
	}
	if strings.HasPrefix(cmd, "for d in ") {
		return deviceImageAlt + "\n", nil
	}
	return "", nil
}

func (f *fakeRemote) Push(ctx context.Context, localPath string) (string, error) {
	f.commands = append(f.commands, "push "+localPath)
	return "image.tar.gz", nil
}

// newTestBuilder wires a Builder to the scripted fakes with all waits made
// instant and all environment probes canned.
func newTestBuilder(api *fakeAPI, session *fakeRemote, cfg Config) (*Builder, error) {
	b, err := New(api, cfg)
	if err != nil {
		return nil, err
	}
	b.sleep = func(time.Duration) {}
	b.now = func() time.Time {
		return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	}
	b.measure = func(string) (int32, error) { return 8, nil }
	b.newRemote = func(string, uint16, string, gossh.Signer) Remote { return session }
	return b, nil
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func testConfig(base string) Config {
	return Config{
		Region:      "us-east-1",
		Arch:        "x86_64",
		Base:        base,
		Tarball:     "image.tar.gz",
		Name:        "test-image",
		Description: "test image",
	}
}
