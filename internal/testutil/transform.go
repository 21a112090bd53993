package testutil

import (
	"context"
	"sync"

	"github.com/leapstack-labs/ajanta/internal/program"
)

// TransformCall records one call to FakeTransformer.
type TransformCall struct {
	Image    []byte
	Dispatch []string
	Strip    bool
}

// FakeTransformer is an in-process transformer returning a fixed program.
// Stripped calls get the program without debug sections.
type FakeTransformer struct {
	Program *program.Parts
	Err     error

	mu    sync.Mutex
	calls []TransformCall
}

// NewFakeTransformer returns a fake that emits SampleProgram.
func NewFakeTransformer() *FakeTransformer {
	return &FakeTransformer{Program: SampleProgram()}
}

// Transform implements transform.Transformer.
func (f *FakeTransformer) Transform(_ context.Context, image []byte, dispatch []string, strip bool) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, TransformCall{Image: image, Dispatch: dispatch, Strip: strip})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	p := f.Program
	if strip {
		p = p.Strip()
	}
	return p.Encode()
}

// Calls returns the recorded calls in order.
func (f *FakeTransformer) Calls() []TransformCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TransformCall(nil), f.calls...)
}

// SampleProgram is a small program exporting refine_ext, which loads 0 into
// a0 and jumps to the return address, plus a helper and debug strings.
func SampleProgram() *program.Parts {
	code := []byte{
		51, 0x07, // load_imm a0, 0
		50, 0x00, // jump_ind ra, 0
		0, // trap
	}
	return &program.Parts{
		StackSize: 4096,
		Exports: []program.Export{
			{Offset: 0, Symbol: "refine_ext"},
			{Offset: 4, Symbol: "helper"},
		},
		Code:         program.NewCode(code, []int{0, 2, 4}, nil),
		DebugStrings: []byte("service.c\x00refine_ext\x00"),
	}
}
