package builder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/ebsami/ebsami/internal/ssh"
)

func (b *Builder) ensureSecurityGroup(ctx context.Context) error {
	if err := securityGroupEnsure(ctx, b.client, securityGroupName); err != nil {
		return err
	}
	b.res.SecurityGroup = securityGroupName
	return nil
}

// createKeypair generates a process-unique ED25519 keypair, imports the
// public half and persists the private half to a mode-0600 temp file.
func (b *Builder) createKeypair(ctx context.Context) error {
	log := clog.FromContext(ctx)

	keys, err := ssh.NewED25519KeyPair()
	if err != nil {
		return err
	}
	b.keys = keys

	keyName := "ebsami-" + uuid.New().String()
	pub, err := keys.Public.MarshalOpenSSH()
	if err != nil {
		return err
	}
	if err := keypairImport(ctx, b.client, keyName, pub); err != nil {
		return err
	}
	b.res.KeyName = keyName
	log.Info("imported keypair", "key_name", keyName)

	pem, err := keys.Private.MarshalOpenSSH(keyName)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp("", keyName+"-*.pem")
	if err != nil {
		return fmt.Errorf("failed to create private key file: %w", err)
	}
	b.res.KeyPath = f.Name()
	if _, err := f.Write(pem); err != nil {
		f.Close()
		return fmt.Errorf("failed to write private key file: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("failed to restrict private key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close private key file: %w", err)
	}
	log.Debug("persisted private key", "key_path", b.res.KeyPath)
	return nil
}

func (b *Builder) launchInstance(ctx context.Context) error {
	log := clog.FromContext(ctx).With("ami", b.baseAMI, "instance_type", b.instanceType)
	log.Info("launching builder instance")

	id, zone, err := instanceLaunch(ctx, b.client, b.baseAMI,
		types.InstanceType(b.instanceType), b.res.KeyName, b.res.SecurityGroup)
	if err != nil {
		return err
	}
	b.res.InstanceID = id
	b.res.AvailabilityZone = zone
	log.Info("instance launched", "instance_id", id, "zone", zone)
	return nil
}

// resolveSize reconciles the requested volume size with the measured image
// footprint. The larger wins; adjusted reports a requested size that had to
// be grown.
func resolveSize(requested, measured int32) (size int32, adjusted bool) {
	if requested >= measured {
		return requested, false
	}
	return measured, requested != 0
}

// resolveVolumeSize measures the tarball's apparent footprint and settles
// the image volume size.
func (b *Builder) resolveVolumeSize(ctx context.Context) error {
	log := clog.FromContext(ctx).With("tarball", b.cfg.Tarball)

	measured, err := b.measure(b.cfg.Tarball)
	if err != nil {
		return err
	}
	size, adjusted := resolveSize(b.cfg.VolumeSizeGB, measured)
	if adjusted {
		log.Info("growing requested volume size to fit the image",
			"requested_gb", b.cfg.VolumeSizeGB, "measured_gb", measured)
	}
	b.cfg.VolumeSizeGB = size
	log.Info("resolved volume size", "size_gb", size)
	return nil
}

// awaitInstanceRunning waits for the instance to run and records its public
// hostname for the remote session.
func (b *Builder) awaitInstanceRunning(ctx context.Context) error {
	if err := b.awaitInstanceState(ctx, b.res.InstanceID, attemptsInstance,
		types.InstanceStateNameRunning); err != nil {
		return err
	}
	instance, err := instanceDescribe(ctx, b.client, b.res.InstanceID)
	if err != nil {
		return err
	}
	if instance.PublicDnsName == nil || *instance.PublicDnsName == "" {
		return fmt.Errorf("instance %s is running but has no public hostname", b.res.InstanceID)
	}
	b.res.Hostname = *instance.PublicDnsName
	clog.FromContext(ctx).Info("instance is running", "hostname", b.res.Hostname)
	return nil
}

// createAndAttachVolume creates the image volume in the instance's zone and
// attaches it at the image device.
func (b *Builder) createAndAttachVolume(ctx context.Context) error {
	log := clog.FromContext(ctx).With("zone", b.res.AvailabilityZone, "size_gb", b.cfg.VolumeSizeGB)
	log.Info("creating image volume")

	volumeID, err := volumeCreate(ctx, b.client, b.res.AvailabilityZone, b.cfg.VolumeSizeGB)
	if err != nil {
		return err
	}
	b.res.ImageVolumeID = volumeID
	if err := b.awaitVolumeState(ctx, volumeID, attemptsVolume, types.VolumeStateAvailable); err != nil {
		return err
	}
	if err := volumeAttach(ctx, b.client, volumeID, b.res.InstanceID, deviceImage); err != nil {
		return err
	}
	if err := b.awaitVolumeAttached(ctx, volumeID, attemptsVolume); err != nil {
		return err
	}
	log.Info("image volume attached", "volume_id", volumeID, "device", deviceImage)
	return nil
}

// connectRemote opens the SSH session against the instance, waiting out the
// boot window.
func (b *Builder) connectRemote(ctx context.Context) (Remote, error) {
	signer, err := b.keys.Private.ToSSH()
	if err != nil {
		return nil, err
	}
	session := b.newRemote(b.res.Hostname, b.cfg.SSHPort, b.cfg.SSHUser, signer)
	if err := session.WaitReady(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// requiredTools must all be present on the builder instance before the image
// write starts.
var requiredTools = []string{"tar", "dd", "zcat"}

func (b *Builder) verifyRemoteTools(ctx context.Context, session Remote) error {
	for _, tool := range requiredTools {
		if _, err := session.Run(ctx, "command -v "+tool); err != nil {
			return fmt.Errorf("%w: %s", ErrToolMissing, tool)
		}
	}
	return nil
}

// probeImageDevice resolves the device node the attached volume surfaced as.
// The kernel may expose the requested /dev/sdh as /dev/xvdh, and either node
// can take a moment to appear after the attachment reports complete.
func (b *Builder) probeImageDevice(ctx context.Context, session Remote) (string, error) {
	probe := fmt.Sprintf(
		`for d in %s %s; do if [ -b "$d" ]; then echo "$d"; break; fi; done`,
		deviceImage, deviceImageAlt)

	var device string
	err := b.waiter(attemptsDevice).Wait(ctx, "image volume device node",
		func(ctx context.Context) (bool, error) {
			out, err := session.Run(ctx, probe)
			if err != nil {
				return false, err
			}
			device = strings.TrimSpace(out)
			return device != "", nil
		})
	if err != nil {
		return "", err
	}
	return device, nil
}

// writeImage transfers the tarball and streams its contents onto the image
// volume. tar detects the compression itself; -S keeps sparse regions sparse
// and -O streams the entry to stdout for dd.
func (b *Builder) writeImage(ctx context.Context, session Remote) error {
	log := clog.FromContext(ctx)

	remotePath, err := session.Push(ctx, b.cfg.Tarball)
	if err != nil {
		return err
	}
	device, err := b.probeImageDevice(ctx, session)
	if err != nil {
		return err
	}
	log.Info("writing image to volume", "remote_path", remotePath, "device", device)
	cmd := fmt.Sprintf("tar -SxOf %s | dd of=%s bs=1M conv=fsync", remotePath, device)
	if out, err := session.Run(ctx, cmd); err != nil {
		return fmt.Errorf("image write failed: %w: %s", err, out)
	}
	log.Info("image written")
	return nil
}
