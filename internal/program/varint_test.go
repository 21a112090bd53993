package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

func TestVarint(t *testing.T) {
	tests := []struct {
		value uint64
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x80}},
		{16383, []byte{0xbf, 0xff}},
		{16384, []byte{0xc0, 0x00, 0x40}},
		{1<<32 - 1, []byte{0xf0, 0xff, 0xff, 0xff, 0xff}},
		{1<<56 - 1, []byte{0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{1 << 56, []byte{0xff, 0, 0, 0, 0, 0, 0, 0, 0x01}},
		{1<<64 - 1, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		got := AppendVarint(nil, tt.value)
		assert.Equal(t, tt.want, got, "encode %d", tt.value)
		assert.Equal(t, len(tt.want), VarintLen(tt.value), "len %d", tt.value)

		v, n, err := ReadVarint(append(got, 0xaa))
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
		assert.Equal(t, len(tt.want), n)
	}
}

func TestReadVarint_Truncated(t *testing.T) {
	for _, in := range [][]byte{nil, {0x80}, {0xc0, 0x00}, {0xff, 1, 2, 3}} {
		_, _, err := ReadVarint(in)
		assert.True(t, errs.IsKind(err, errs.KindFormat), "input %x", in)
	}
}
