package builder

import (
	"context"

	"github.com/chainguard-dev/clog"
)

// registrar converts the written image volume into a registered image. The
// two implementations differ in how the volume becomes a root device:
// snapshotRegistrar snapshots it and registers the snapshot, swapRegistrar
// swaps it in as the stopped builder's root device and images the instance.
type registrar interface {
	finalize(ctx context.Context, b *Builder, volumeID string) (imageID string, err error)
}

const codeDuplicateImageName = "InvalidAMIName.Duplicate"

// registerWithRetry attempts the registration under the requested name and,
// on a name collision, retries exactly once under a time-suffixed variant.
// Any other failure, including a missing id in a successful response, is
// final.
func (b *Builder) registerWithRetry(
	ctx context.Context,
	register func(name string) (string, error),
) (string, error) {
	log := clog.FromContext(ctx)

	name := b.cfg.Name
	imageID, err := register(name)
	if isAPIError(err, codeDuplicateImageName) {
		name = b.cfg.Name + "-" + b.now().Format("150405")
		log.Info("image name already taken, retrying with suffix", "name", name)
		imageID, err = register(name)
	}
	if err != nil {
		return "", err
	}
	b.res.ImageName = name
	log.Info("image registered", "image_id", imageID, "image_name", name)
	return imageID, nil
}
