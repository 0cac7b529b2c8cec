// Command cpkpack builds, inspects and locates CPK archives.
package main

import (
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/arkilian/cpkpack/cmd/cpkpack/command"
)

const name = "cpkpack"

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	parser := flags.NewNamedParser(name, flags.Default)

	parser.AddCommand("create", command.CreateDescription, command.CreateHelp, &command.Create{})
	parser.AddCommand("inspect", command.InspectDescription, command.InspectHelp, &command.Inspect{})
	parser.AddCommand("table", command.TableDescription, command.TableHelp, &command.Table{})
	parser.AddCommand("locate", command.LocateDescription, command.LocateHelp, &command.Locate{})
	parser.AddCommand("reconcile", command.ReconcileDescription, command.ReconcileHelp, &command.Reconcile{})
	parser.AddCommand("version", command.VersionDescription, command.VersionHelp,
		&command.Version{
			Name:    name,
			Version: version,
			Build:   commit,
		})

	_, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrCommandRequired {
			parser.WriteHelp(os.Stdout)
		}

		os.Exit(1)
	}
}
