package command

import (
	"fmt"
	"os"

	"github.com/arkilian/cpkpack/internal/utf"
)

const (
	TableDescription = "Decode a standalone @UTF table"
	TableHelp        = TableDescription + `.

The file must start with the @UTF magic. Use --layout to print the header
offsets and the storage mode counts instead of the rows.`
)

// Table represents the `table` command.
type Table struct {
	File   string `long:"file" short:"f" required:"true" description:"file holding one @UTF table"`
	Layout bool   `long:"layout" description:"print the table header instead of the rows"`
}

// Execute decodes and prints the table.
func (c *Table) Execute(args []string) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}

	t, l, err := utf.DecodeLayout(data)
	if err != nil {
		return err
	}
	if !l.Consistent() {
		fmt.Fprintln(os.Stderr, "warning: header offsets disagree with the data")
	}
	if c.Layout {
		_, err := fmt.Fprintln(stdout, l)
		return err
	}
	return writeTable(stdout, t)
}
