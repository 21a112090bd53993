package program

import (
	"encoding/binary"
	"math/bits"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// MaxVarintLen is the longest natural-number encoding in bytes.
const MaxVarintLen = 9

// AppendVarint appends the natural-number encoding of x to dst.
//
// Values below 2^7 take one byte. Otherwise the first byte carries l leading
// one bits followed by the high bits of x, and l little-endian bytes follow.
// Values that do not fit in 2^56 are written as 0xff plus eight bytes.
func AppendVarint(dst []byte, x uint64) []byte {
	if x < 1<<7 {
		return append(dst, byte(x))
	}
	for l := 1; l <= 7; l++ {
		if x < 1<<(7*(l+1)) {
			prefix := ^(byte(0xff) >> l)
			dst = append(dst, prefix|byte(x>>(8*l)))
			for i := 0; i < l; i++ {
				dst = append(dst, byte(x>>(8*i)))
			}
			return dst
		}
	}
	dst = append(dst, 0xff)
	return binary.LittleEndian.AppendUint64(dst, x)
}

// VarintLen returns the encoded size of x.
func VarintLen(x uint64) int {
	for l := 0; l <= 7; l++ {
		if x < 1<<(7*(l+1)) {
			return l + 1
		}
	}
	return MaxVarintLen
}

// ReadVarint decodes one natural number from the front of data and reports
// how many bytes it consumed.
func ReadVarint(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, errs.Format("varint: unexpected end of input")
	}
	first := data[0]
	l := bits.LeadingZeros8(^first)
	if l == 0 {
		return uint64(first), 1, nil
	}
	if len(data) < 1+l {
		return 0, 0, errs.Format("varint: need %d bytes, have %d", 1+l, len(data))
	}
	var low uint64
	for i := 0; i < l; i++ {
		low |= uint64(data[1+i]) << (8 * i)
	}
	if l == 8 {
		return low, 9, nil
	}
	high := uint64(first) & (1<<(7-l) - 1)
	return high<<(8*l) | low, 1 + l, nil
}
