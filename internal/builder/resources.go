package builder

// Resources tracks every cloud resource a run has created. Fields are
// appended monotonically as each create call succeeds and drained back to
// empty as teardown confirms each removal. An empty field means "never
// created, nothing to undo".
type Resources struct {
	// SecurityGroup is shared, reusable infrastructure. It is recorded for
	// reporting but deliberately never deleted.
	SecurityGroup string

	KeyName string
	KeyPath string // local private key file, removed with the keypair

	InstanceID       string
	AvailabilityZone string
	Hostname         string

	ImageVolumeID string

	// RootVolumeID is populated only by the stop-and-swap strategy, once the
	// builder's original root volume has been detached.
	RootVolumeID string

	// SnapshotID is populated only by the snapshot strategy. On teardown the
	// snapshot is deleted only while ImageID is empty: once an image has been
	// registered from it, the snapshot belongs to the image.
	SnapshotID string

	ImageID   string
	ImageName string // the name the image was actually registered under
}
