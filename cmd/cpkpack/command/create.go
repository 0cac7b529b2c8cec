package command

import (
	"fmt"

	"github.com/arkilian/cpkpack/internal/app"
	"github.com/arkilian/cpkpack/internal/config"
)

const (
	CreateDescription = "Build an archive from a directory"
	CreateHelp        = CreateDescription + `.

The directory must contain a _meta.json manifest listing the files to pack:

  {
    "alignment": 2048,
    "encrypt-tables": true,
    "entries": [
      {"id": 0, "name": "sound/bgm.acb", "path": "sound/bgm.acb"}
    ]
  }

Paths are relative to the directory. Names are stored in the archive as
given.`
)

// Create represents the `create` command.
type Create struct {
	configOptions

	Directory string `long:"directory" short:"d" required:"true" description:"input directory holding _meta.json"`
	Archive   string `long:"archive" short:"o" required:"true" description:"output archive path"`
	Verify    bool   `long:"verify" description:"re-read the archive after writing and check its file table"`
}

// Execute builds the archive.
func (c *Create) Execute(args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	m, err := config.LoadManifestDir(c.Directory)
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Packer(c.Verify).Pack(ctx, m, c.Directory, c.Archive)
	if err != nil {
		return err
	}

	l := report.Layout
	fmt.Fprintf(stdout, "%s: %d files, %d bytes of content, %d bytes total (%s)\n",
		report.ArchivePath, len(l.Entries), l.TotalSize, l.End, report.Duration.Round(1e6))
	if report.ObjectPath != "" {
		fmt.Fprintf(stdout, "published: %s\n", report.ObjectPath)
	}
	if report.Record != nil {
		fmt.Fprintf(stdout, "build id: %s\n", report.Record.BuildID)
	}
	return nil
}
