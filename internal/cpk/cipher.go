package cpk

const (
	cipherSeed       = 0x5F
	cipherMultiplier = 0x15
)

// Crypt returns a copy of data XORed with the table cipher keystream. The
// keystream only depends on the byte position, so Crypt is its own inverse.
func Crypt(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	cryptInPlace(out)
	return out
}

func cryptInPlace(data []byte) {
	key := byte(cipherSeed)
	for i := range data {
		data[i] ^= key
		key *= cipherMultiplier
	}
}
