package bloom

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestOptimalParameters(t *testing.T) {
	bits, hashes := OptimalParameters(1000, 0.01)
	// m = 1000 * ln(100) / ln(2)^2 ≈ 9585, k ≈ 6.64
	if bits != 9586 || hashes != 7 {
		t.Errorf("OptimalParameters(1000, 0.01) = %d, %d", bits, hashes)
	}

	bits, hashes = OptimalParameters(1, 0.5)
	if bits != 64 || hashes < 1 {
		t.Errorf("small filter = %d bits, %d hashes", bits, hashes)
	}
}

func TestNameFilter(t *testing.T) {
	names := make([]string, 500)
	for i := range names {
		names[i] = fmt.Sprintf("data/stage%03d.acb", i)
	}
	f := NewNameFilter(names)

	for _, name := range names {
		if !f.ContainsString(name) {
			t.Fatalf("false negative for %q", name)
		}
	}
	if f.Count() != uint64(len(names)) {
		t.Errorf("Count() = %d", f.Count())
	}

	falsePositives := 0
	for i := 0; i < 10000; i++ {
		if f.ContainsString(fmt.Sprintf("other/%d.bin", i)) {
			falsePositives++
		}
	}
	if rate := float64(falsePositives) / 10000; rate > 0.03 {
		t.Errorf("false positive rate %.4f is too high", rate)
	}
	if est := f.FalsePositiveRate(); est <= 0 || est > 0.02 {
		t.Errorf("estimated rate %.4f", est)
	}
}

func TestEmptyFilter(t *testing.T) {
	f := NewNameFilter(nil)
	if f.ContainsString("anything") {
		t.Error("empty filter reported a member")
	}
	if f.FalsePositiveRate() != 0 {
		t.Error("empty filter should have zero rate")
	}
}

func TestDeserialize_Errors(t *testing.T) {
	if _, err := Deserialize(make([]byte, 10)); err == nil {
		t.Error("expected error for short data")
	}

	data := New(128, 3).Serialize()
	if _, err := Deserialize(data[:len(data)-8]); err == nil {
		t.Error("expected error for missing words")
	}

	zeroHashes := append([]byte{}, data...)
	copy(zeroHashes[8:16], make([]byte, 8))
	if _, err := Deserialize(zeroHashes); err == nil {
		t.Error("expected error for zero hashes")
	}

	compressed := New(128, 3).SerializeCompressed()
	if _, err := DeserializeCompressed(compressed[:25]); err == nil {
		t.Error("expected error for corrupt snappy data")
	}
}

func TestProperty_SerializationPreservesMembership(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every added name survives both serialized forms", prop.ForAll(
		func(names []string) bool {
			f := NewNameFilter(names)

			plain, err := Deserialize(f.Serialize())
			if err != nil {
				return false
			}
			compressed, err := DeserializeCompressed(f.SerializeCompressed())
			if err != nil {
				return false
			}
			if plain.Count() != f.Count() || compressed.NumBits() != f.NumBits() {
				return false
			}
			for _, name := range names {
				if !plain.ContainsString(name) || !compressed.ContainsString(name) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
