package index

import "encoding/binary"

// Comparator returns <0, 0, >0 for a total order over K. The hash table
// uses only the ==0 case (SPEC_FULL.md §4.6).
type Comparator[K any] func(a, b K) int

// HashFunc reduces a key to a 64-bit digest; the table downcasts to 32 bits.
type HashFunc[K any] func(k K) uint64

// Codec packs and unpacks fixed-width (Key, Value) pairs into a page's byte
// image. Implementations must report a constant KeySize/ValueSize: the
// bucket page's slot stride is sizeof(Key)+sizeof(Value) with no alignment
// padding (SPEC_FULL.md §9 "Templated key/value types").
type Codec[K any, V any] interface {
	KeySize() int
	ValueSize() int
	EncodeKey(k K, dst []byte)
	DecodeKey(src []byte) K
	EncodeValue(v V, dst []byte)
	DecodeValue(src []byte) V
}

// Uint64Codec is a ready-made Codec for uint64 keys and values, the common
// case for synthetic and benchmark workloads.
type Uint64Codec struct{}

func (Uint64Codec) KeySize() int   { return 8 }
func (Uint64Codec) ValueSize() int { return 8 }

func (Uint64Codec) EncodeKey(k uint64, dst []byte) { binary.LittleEndian.PutUint64(dst, k) }
func (Uint64Codec) DecodeKey(src []byte) uint64     { return binary.LittleEndian.Uint64(src) }
func (Uint64Codec) EncodeValue(v uint64, dst []byte) { binary.LittleEndian.PutUint64(dst, v) }
func (Uint64Codec) DecodeValue(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

// Uint64Comparator is the natural Comparator for uint64 keys.
func Uint64Comparator(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Uint64Hash is a cheap avalanching hash (MurmurHash3 fmix64 finalizer) suitable as
// the table's HashFunc for uint64 keys.
func Uint64Hash(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// StringCodec packs fixed-width strings (padded/truncated to Width bytes) as
// both keys and values, demonstrating that the bucket layout generalizes
// beyond integer types.
type StringCodec struct {
	Width int
}

func (c StringCodec) KeySize() int   { return c.Width }
func (c StringCodec) ValueSize() int { return c.Width }

func (c StringCodec) EncodeKey(k string, dst []byte)   { encodeFixedString(k, dst) }
func (c StringCodec) DecodeKey(src []byte) string       { return decodeFixedString(src) }
func (c StringCodec) EncodeValue(v string, dst []byte) { encodeFixedString(v, dst) }
func (c StringCodec) DecodeValue(src []byte) string     { return decodeFixedString(src) }

func encodeFixedString(s string, dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
}

func decodeFixedString(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// FNV1aHash64 hashes arbitrary bytes; useful as the basis for a string
// HashFunc.
func FNV1aHash64(b []byte) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime64
	}
	return h
}
