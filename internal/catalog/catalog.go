// catalog holds the static per-region, per-architecture identifier tables the
// build pipeline resolves before any resource is created: the base AMI the
// builder instance boots from, the paravirtual boot-loader kernel (AKI)
// required to register a snapshot-backed image, and the legacy instance type
// matching each architecture.
package catalog

import (
	"fmt"
	"strings"
)

var (
	ErrUnknownRegion = fmt.Errorf("unknown region")
	ErrUnknownArch   = fmt.Errorf("unknown architecture")
)

const (
	ArchI386  = "i386"
	ArchX8664 = "x86_64"

	// Base OS families needing the stop-and-swap registration path all share
	// this prefix (SLES11_SP1, SLES11_SP2, ...).
	swapFamilyPrefix = "SLES11"
)

// regionIDs carries the two identifiers this pipeline needs per (region,
// architecture): a bootable base AMI for the builder instance and the
// pv-grub kernel image used when registering snapshot-backed images.
type regionIDs struct {
	baseAMI string
	kernel  string
}

var regions = map[string]map[string]regionIDs{
	"us-east-1": {
		ArchI386:  {baseAMI: "ami-d7a081be", kernel: "aki-407d9529"},
		ArchX8664: {baseAMI: "ami-e1a08288", kernel: "aki-427d952b"},
	},
	"us-west-1": {
		ArchI386:  {baseAMI: "ami-923909d7", kernel: "aki-99a0f1dc"},
		ArchX8664: {baseAMI: "ami-c4390981", kernel: "aki-9ba0f1de"},
	},
	"us-west-2": {
		ArchI386:  {baseAMI: "ami-6ce6505c", kernel: "aki-dce26fec"},
		ArchX8664: {baseAMI: "ami-18e6502f", kernel: "aki-98e26fa8"},
	},
	"eu-west-1": {
		ArchI386:  {baseAMI: "ami-8daac8f9", kernel: "aki-4deec439"},
		ArchX8664: {baseAMI: "ami-8faac8fb", kernel: "aki-4feec43b"},
	},
	"ap-southeast-1": {
		ArchI386:  {baseAMI: "ami-ba7538e8", kernel: "aki-13d5aa41"},
		ArchX8664: {baseAMI: "ami-be7538ec", kernel: "aki-11d5aa43"},
	},
}

func lookup(region, arch string) (regionIDs, error) {
	archs, ok := regions[region]
	if !ok {
		return regionIDs{}, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	ids, ok := archs[arch]
	if !ok {
		return regionIDs{}, fmt.Errorf("%w: %q", ErrUnknownArch, arch)
	}
	return ids, nil
}

// BaseImage returns the AMI the ephemeral builder instance is launched from.
func BaseImage(region, arch string) (string, error) {
	ids, err := lookup(region, arch)
	if err != nil {
		return "", err
	}
	return ids.baseAMI, nil
}

// Kernel returns the paravirtual boot-loader kernel id used to make a
// snapshot-derived image bootable.
func Kernel(region, arch string) (string, error) {
	ids, err := lookup(region, arch)
	if err != nil {
		return "", err
	}
	return ids.kernel, nil
}

// InstanceType returns the builder instance size for the target architecture.
// 64-bit images need a 64-bit builder.
func InstanceType(arch string) (string, error) {
	switch arch {
	case ArchI386:
		return "m1.small", nil
	case ArchX8664:
		return "m1.large", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownArch, arch)
	}
}

// IsSwapFamily reports whether the base OS family requires the stop-and-swap
// registration path. SLES 11 images cannot boot from a pv-grub registered
// snapshot, so the written volume is swapped in as the stopped builder's root
// device and the image is created from the instance itself.
func IsSwapFamily(base string) bool {
	return strings.HasPrefix(base, swapFamilyPrefix)
}
