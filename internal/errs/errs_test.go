package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "kind only",
			err:  &Error{Kind: KindFormat},
			want: "[format]",
		},
		{
			name: "stage and detail",
			err:  New(KindArgument).Stage("disasm").Detail(`unknown format "foo"`).Build(),
			want: `[argument] disasm: unknown format "foo"`,
		},
		{
			name: "path and cause",
			err:  IO("write", "build/service.pvm", fs.ErrPermission),
			want: "[io] write at build/service.pvm (caused by: permission denied)",
		},
		{
			name: "tool output",
			err: New(KindCompile).Stage("compile").Tool("riscv64-elf-gcc").
				Detail("exit status 1").Output([]byte("out"), []byte("main.c:1: error")).Build(),
			want: "[compile] compile (riscv64-elf-gcc): exit status 1\nstdout: out\nstderr: main.c:1: error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("build failed: %w", New(KindLink).Stage("link").Build())

	assert.ErrorIs(t, err, ErrLink)
	assert.NotErrorIs(t, err, ErrCompile)
	assert.ErrorIs(t, err, &Error{Kind: KindLink, Stage: "link"})
	assert.NotErrorIs(t, err, &Error{Kind: KindLink, Stage: "compile"})
}

func TestError_Unwrap(t *testing.T) {
	err := IO("read", "x.pvm", fs.ErrNotExist)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var e *Error
	require.True(t, errors.As(fmt.Errorf("wrap: %w", err), &e))
	assert.Equal(t, "x.pvm", e.Path)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindFormat, KindOf(Format("truncated")))
	assert.Equal(t, KindArgument, KindOf(fmt.Errorf("x: %w", Argument("bad"))))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.True(t, IsKind(Format("x"), KindFormat))
	assert.False(t, IsKind(nil, KindFormat))
}

func TestBuilder_Independent(t *testing.T) {
	b := New(KindTransform).Stage("transform")
	first := b.Detail("one").Build()
	second := b.Detail("two").Build()

	assert.Equal(t, "one", first.Detail)
	assert.Equal(t, "two", second.Detail)
}
