package cpk

import (
	"fmt"
	"math"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

// Config controls how an archive is laid out.
type Config struct {
	// Alignment is the boundary every file payload and table chunk starts
	// on. It is stored in the header as a u16.
	Alignment int `json:"alignment" yaml:"alignment"`

	// CipherTables obfuscates the payload of every table chunk.
	CipherTables bool `json:"cipher_tables" yaml:"cipher_tables"`

	// RandomizePadding fills alignment gaps with random bytes instead of
	// zeros. It has no effect on readers.
	RandomizePadding bool `json:"randomize_padding" yaml:"randomize_padding"`

	// Comment and ToolVersion go into the header's Comment and Tvers
	// columns.
	Comment     string `json:"comment" yaml:"comment"`
	ToolVersion string `json:"tool_version" yaml:"tool_version"`
}

// DefaultConfig returns a configuration with plain tables, zero padding and
// 2048-byte alignment.
func DefaultConfig() Config {
	return Config{Alignment: 2048}
}

// Validate checks that the alignment fits the header's u16 column.
func (c Config) Validate() error {
	if c.Alignment < 1 || c.Alignment > math.MaxUint16 {
		return cpkerrors.NewValidationError(cpkerrors.CodeInvalidConfig,
			fmt.Sprintf("cpk: alignment must be in 1..%d, got %d", math.MaxUint16, c.Alignment))
	}
	return nil
}
