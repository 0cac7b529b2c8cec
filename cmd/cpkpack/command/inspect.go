package command

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/arkilian/cpkpack/internal/cpk"
	"github.com/arkilian/cpkpack/pkg/types"
)

const (
	InspectDescription = "Print the tables of an archive"
	InspectHelp        = InspectDescription + `.

Reads the header, the file table and the id index. File payloads are not
read.`
)

// Inspect represents the `inspect` command.
type Inspect struct {
	Archive string `long:"archive" short:"a" required:"true" description:"archive to inspect"`
	Tables  bool   `long:"tables" description:"dump every column of the header, file table and id index"`
}

// Execute prints the archive metadata.
func (c *Inspect) Execute(args []string) error {
	f, err := os.Open(c.Archive)
	if err != nil {
		return err
	}
	defer f.Close()

	archive, err := cpk.Inspect(f)
	if err != nil {
		return err
	}

	if c.Tables {
		for _, t := range []*types.Table{archive.Header, archive.TOC, archive.ITOC} {
			if err := writeTable(stdout, t); err != nil {
				return err
			}
		}
		return nil
	}

	for _, col := range []string{"ContentOffset", "ContentSize", "TocOffset", "ItocOffset", "Files", "Align", "Version", "Revision"} {
		if v, ok := archive.HeaderValue(col); ok {
			fmt.Fprintf(stdout, "%-14s %v\n", col, v)
		}
	}
	fmt.Fprintf(stdout, "%-14s %v\n\n", "Ciphered", archive.Ciphered)

	tw := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tOFFSET\tSIZE\tNAME\t")
	for _, e := range archive.Files {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t\n", e.ID, e.Offset, e.Size, e.Name)
	}
	return tw.Flush()
}

// writeTable prints a decoded table as one row per line.
func writeTable(w io.Writer, t *types.Table) error {
	fmt.Fprintf(w, "%s (%d rows, %s)\n", t.Spec.Name, len(t.Rows), t.Spec.Encoding)

	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	for _, c := range t.Spec.Columns {
		fmt.Fprintf(tw, "%s:%s\t", c.Name, c.Kind)
	}
	fmt.Fprintln(tw)
	for _, row := range t.Rows {
		for _, v := range row {
			fmt.Fprintf(tw, "%v\t", v)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
