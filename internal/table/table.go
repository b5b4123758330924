package table

// Header is the fixed column ordering shared by every row of one input
// file. It is built once from the first record of the input and is
// read-only afterwards, so it is safe for unsynchronized concurrent reads.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader builds a Header from an ordered list of column names.
//
// A duplicate column name is resolved to its last occurrence, matching
// common spreadsheet-export behavior: lookups by name return the
// rightmost index, while Names() still reports every column.
func NewHeader(names []string) Header {
	h := Header{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(h.names, names)
	for i, name := range names {
		h.index[name] = i
	}
	return h
}

// Index returns the position of a named column, or false if the column
// does not exist in the header.
func (h Header) Index(name string) (int, bool) {
	i, ok := h.index[name]
	return i, ok
}

// Names returns the column names in input order.
// The returned slice must not be mutated.
func (h Header) Names() []string {
	return h.names
}

// Len returns the number of columns.
func (h Header) Len() int {
	return len(h.names)
}

// Row is one record's values, positionally aligned with a Header.
// Rows are transient: created by a source, consumed by evaluation, and
// only projected copies survive.
type Row []string

// Clone returns an independent copy of the row. Sources that reuse their
// field buffers between reads hand out clones so accumulated rows stay
// valid after the next read.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}
