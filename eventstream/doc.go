// Package eventstream splits a line-framed event stream (Server-Sent Events or
// newline-delimited JSON) into discrete events.
//
// A [Parser] is fed raw chunks in receipt order. Chunk boundaries are
// arbitrary: a chunk may end in the middle of a line, or carry several events.
// Each complete line becomes an [Event] that is dispatched synchronously, first
// to every registered [Visitor] and then to every callback subscribed with
// [Parser.On] for that field.
//
//	p := eventstream.NewParser()
//	p.On("data", func(ev eventstream.Event) error {
//	    fmt.Println(ev.Value)
//	    return nil
//	})
//	if _, err := p.ReadFrom(resp.Body); err != nil {
//	    return err
//	}
//
// A Parser is not safe for concurrent use; callers that read the transport on
// several goroutines must serialise calls into it.
package eventstream
