// Package document provides the explicit JSON tree used to assemble streamed
// responses.
//
// A [Value] is a tagged union of null, bool, number, string, object and array.
// Objects keep their keys in insertion order and strings can be extended in
// place, which is what incremental merging needs. All access is explicit:
//
//	body, _ := document.Parse(data)
//	text := body.Lookup("choices", 0, "message", "content").Text()
//
// Values are not safe for concurrent mutation.
package document
