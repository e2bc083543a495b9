// Package delta folds streamed response fragments into one cumulative
// document.
//
// Each vendor describes how its fields merge with a declarative [Table]: a
// field either overwrites, concatenates, recurses into a nested object,
// merges element-wise by index, or appends. A [Merger] applies the table to
// every delta it receives, in order, and pushes newly assembled text to an
// optional sink as it goes:
//
//	m := delta.New(table, delta.WithSink(os.Stdout))
//	for _, d := range deltas {
//	    if err := m.Merge(d); err != nil {
//	        return err
//	    }
//	}
//	final := m.Body()
//
// Keys missing from the table are stored verbatim, so new vendor fields never
// break merging. A Merger is not safe for concurrent use.
package delta
