// Package testutil provides helpers for testing streaming code.
//
// Chunking helpers cut a byte stream at chosen offsets so tests can check that
// framing does not depend on where the transport splits reads:
//
//	for _, chunk := range testutil.SplitEvery(stream, 3) {
//	    parser.Write(chunk)
//	}
//
// [RecordingSink] records every write it receives, and [StreamServer] starts an
// httptest server that writes and flushes frames one at a time, the way a
// provider streams a response.
package testutil
