package program

// Dispatch symbol names. Their order fixes the dispatch index the host uses
// to invoke each entry point.
const (
	RefineSymbol     = "refine_ext"
	AccumulateSymbol = "accumulate_ext"
	OnTransferSymbol = "on_transfer_ext"
)

var dispatchSymbols = [...]string{RefineSymbol, AccumulateSymbol, OnTransferSymbol}

// DispatchSymbols returns the fixed dispatch symbol list in index order.
func DispatchSymbols() []string {
	out := make([]string, len(dispatchSymbols))
	copy(out, dispatchSymbols[:])
	return out
}

// DispatchEntry maps one dispatch symbol to its index and code offset.
type DispatchEntry struct {
	Index      int    `json:"index"`
	Symbol     string `json:"symbol"`
	CodeOffset uint32 `json:"code_offset"`
	Resolved   bool   `json:"resolved"`
}

// DispatchTable always holds exactly the three dispatch symbols in index
// order. Symbols the program does not export are present but unresolved.
type DispatchTable [len(dispatchSymbols)]DispatchEntry

// NewDispatchTable derives the table from a program's exports. Exports that
// are not dispatch symbols are ignored.
func NewDispatchTable(exports []Export) DispatchTable {
	var t DispatchTable
	for i, sym := range dispatchSymbols {
		t[i] = DispatchEntry{Index: i, Symbol: sym}
		for _, e := range exports {
			if e.Symbol == sym {
				t[i].CodeOffset = e.Offset
				t[i].Resolved = true
				break
			}
		}
	}
	return t
}

// Lookup returns the entry for a dispatch symbol.
func (t DispatchTable) Lookup(symbol string) (DispatchEntry, bool) {
	for _, e := range t {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return DispatchEntry{}, false
}

// Unresolved lists the dispatch symbols the program does not export.
func (t DispatchTable) Unresolved() []string {
	var out []string
	for _, e := range t {
		if !e.Resolved {
			out = append(out, e.Symbol)
		}
	}
	return out
}
