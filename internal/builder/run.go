package builder

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// forward runs the build pipeline up to a registered image. Every resource
// it creates lands in b.res immediately, so a failure at any step leaves a
// ledger teardown can act on.
func (b *Builder) forward(ctx context.Context) error {
	if err := b.ensureSecurityGroup(ctx); err != nil {
		return err
	}
	if err := b.createKeypair(ctx); err != nil {
		return err
	}
	if err := b.resolveVolumeSize(ctx); err != nil {
		return err
	}
	if err := b.launchInstance(ctx); err != nil {
		return err
	}
	if err := b.awaitInstanceRunning(ctx); err != nil {
		return err
	}
	if err := b.createAndAttachVolume(ctx); err != nil {
		return err
	}

	session, err := b.connectRemote(ctx)
	if err != nil {
		return err
	}
	if err := b.verifyRemoteTools(ctx, session); err != nil {
		return err
	}
	if err := b.writeImage(ctx, session); err != nil {
		return err
	}

	imageID, err := b.registrar.finalize(ctx, b, b.res.ImageVolumeID)
	if err != nil {
		return err
	}
	b.res.ImageID = imageID
	return nil
}

// Run executes the full pipeline and always tears down the build resources,
// whether the pipeline succeeded or not. Teardown failures are reported but
// never mask the pipeline's own outcome.
func (b *Builder) Run(ctx context.Context) error {
	log := clog.FromContext(ctx).With("region", b.cfg.Region, "arch", b.cfg.Arch)

	buildErr := b.forward(ctx)
	if teardownErr := b.teardown(ctx); teardownErr != nil {
		log.Warn("cleanup reported failures, some resources may remain", "error", teardownErr)
	}
	if buildErr != nil {
		return fmt.Errorf("%w: %w", ErrProvisioning, buildErr)
	}

	if b.cfg.MakePublic {
		log.Info("making image public", "image_id", b.res.ImageID)
		if err := imagePublish(ctx, b.client, b.res.ImageID); err != nil {
			return fmt.Errorf("%w: %w", ErrProvisioning, err)
		}
	}
	if b.cfg.TestImage {
		if err := b.testImage(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrProvisioning, err)
		}
	}

	log.Info("image build complete",
		"image_id", b.res.ImageID, "image_name", b.res.ImageName)
	return nil
}

// testImage boots one throwaway instance from the freshly registered image
// and waits for it to reach 'running', then terminates it. No keypair or
// rule group is attached; reaching 'running' is the whole assertion.
func (b *Builder) testImage(ctx context.Context) error {
	log := clog.FromContext(ctx).With("image_id", b.res.ImageID)
	log.Info("booting test instance from registered image")

	id, _, err := instanceLaunch(ctx, b.client, b.res.ImageID,
		types.InstanceType(b.instanceType), "", "")
	if err != nil {
		return err
	}
	if err := b.awaitInstanceState(ctx, id, attemptsInstance,
		types.InstanceStateNameRunning); err != nil {
		terminateErr := instanceTerminate(ctx, b.client, id)
		if terminateErr != nil {
			log.Warn("could not terminate test instance", "instance_id", id, "error", terminateErr)
		}
		return err
	}
	log.Info("test instance booted", "instance_id", id)

	if err := instanceTerminate(ctx, b.client, id); err != nil {
		return err
	}
	return b.awaitInstanceState(ctx, id, attemptsTerminate, types.InstanceStateNameTerminated)
}
