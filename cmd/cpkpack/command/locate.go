package command

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/arkilian/cpkpack/internal/app"
)

const (
	LocateDescription = "Find the archives that contain a file"
	LocateHelp        = LocateDescription + `.

Looks the name up in the build catalog, newest build first. Only archives
built with the catalog enabled are found.`
)

// Locate represents the `locate` command.
type Locate struct {
	configOptions

	Name string `long:"name" short:"n" required:"true" description:"file name as stored in the archive"`
}

// Execute prints every build holding Name with the file's position in it.
func (c *Locate) Execute(args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cfg.Catalog.Enabled = true

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

	cat := a.Catalog()
	builds, err := cat.FindArchivesByName(ctx, c.Name)
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		return fmt.Errorf("%q is not in any cataloged archive", c.Name)
	}

	tw := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "BUILD\tCREATED\tARCHIVE\tID\tOFFSET\tSIZE")
	for _, b := range builds {
		files, err := cat.ListFiles(ctx, b.BuildID)
		if err != nil {
			return err
		}
		archive := b.ArchivePath
		if b.ObjectPath != "" {
			archive = b.ObjectPath
		}
		for _, f := range files {
			if f.Name != c.Name {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
				b.BuildID, b.CreatedAt.Local().Format(time.DateTime), archive, f.ID, f.Offset, f.Size)
		}
	}
	return tw.Flush()
}
