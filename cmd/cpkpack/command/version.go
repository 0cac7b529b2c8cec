package command

import "fmt"

const (
	VersionDescription = "Show the version information"
	VersionHelp        = VersionDescription
)

// Version represents the `version` command of cpkpack.
type Version struct {
	Name    string
	Version string
	Build   string
}

// Execute prints the build information provided by the linker. It honors the
// go-flags.Commander interface.
func (c *Version) Execute(args []string) error {
	fmt.Printf("%s (%s) - build %s\n", c.Name, c.Version, c.Build)
	return nil
}
