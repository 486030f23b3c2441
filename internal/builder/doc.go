// builder turns a raw disk image tarball into a registered, EBS-backed
// machine image by provisioning ephemeral EC2 resources, writing the image
// onto a fresh volume over SSH, and converting that volume into an AMI.
//
// # Phase: Forward pipeline
//
// The pipeline is a fixed, non-branching sequence:
//  1. Security group - named rule group with SSH ingress; already-exists is
//     success (the group is shared infrastructure, reused across runs)
//  2. Key pair - ED25519 key generated locally under a process-unique name,
//     public key imported, private key persisted 0600
//  3. Instance - one builder instance launched from the per-region base AMI
//  4. Volume - sized to max(requested, measured tarball footprint), created
//     in the instance's availability zone and attached as a secondary device
//  5. Remote work - SSH reachability awaited (50 x 3s), required tools
//     verified, tarball uploaded, image written onto the raw device
//
// Every asynchronous state transition is awaited with a bounded fixed-interval
// poll; the attempt budgets are constants in this package.
//
// # Phase: Registration
//
// Exactly one fork, selected once by base OS family:
//   - snapshot strategy: detach the written volume, snapshot it, register a
//     paravirtual image from the completed snapshot plus the per-region
//     boot-loader kernel
//   - stop-and-swap strategy: stop the instance, swap the written volume in
//     as the root device, create the image from the instance itself
//
// Both share a single name-collision retry: one re-attempt with a
// time-of-day suffix, then fatal.
//
// # Phase: Teardown
//
// Teardown runs on every failure and once on the success path. It is
// best-effort: each deletion failure is collected and logged, never aborting
// the remaining steps. Only populated resource fields are acted on, the
// snapshot is kept whenever an image was registered from it, and the
// security group is never deleted.
package builder
