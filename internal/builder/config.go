package builder

import "fmt"

// Config is the resolved run context. It is immutable after construction
// except VolumeSizeGB, which is adjusted upward exactly once against the
// measured tarball footprint.
type Config struct {
	// Required
	Region  string
	Arch    string // "i386" or "x86_64"
	Base    string // base OS family selector (ex: "SLES11_SP1")
	Tarball string // local path to the raw disk image tarball
	Name    string // desired image name

	// Optional
	Description  string
	VolumeSizeGB int32 // requested; 0 means "whatever the image needs"

	// Post-registration actions
	TestImage  bool // boot one instance from the registered image
	MakePublic bool // grant the 'all' group launch permission

	// Remote session, defaulted
	SSHUser string // default: root
	SSHPort uint16 // default: 22
}

func (c *Config) applyDefaults() {
	if c.SSHUser == "" {
		c.SSHUser = "root"
	}
	if c.SSHPort == 0 {
		c.SSHPort = 22
	}
}

func (c *Config) validate() error {
	for _, field := range []struct{ name, value string }{
		{"region", c.Region},
		{"arch", c.Arch},
		{"base", c.Base},
		{"tarball", c.Tarball},
		{"name", c.Name},
	} {
		if field.value == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}
	if c.VolumeSizeGB < 0 {
		return fmt.Errorf("volume_size must not be negative")
	}
	return nil
}
