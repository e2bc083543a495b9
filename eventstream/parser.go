package eventstream

import (
	"bytes"
	"io"
)

const (
	readSize = 4096
	// shrinkAbove is the buffer capacity above which compaction reallocates,
	// so one oversized burst does not pin memory for the rest of the stream.
	shrinkAbove = 64 * 1024
)

// Handler receives one event. A non-nil error stops the current scan pass and
// is returned to whoever fed the parser.
type Handler func(Event) error

// Routes maps field names to handlers.
type Routes map[string]Handler

// Visitor is a listener that routes events by field name.
type Visitor interface {
	Routes() Routes
}

// Fallback is implemented by visitors that want events their Routes do not
// cover, including events with an empty field.
type Fallback interface {
	OnChunk(Event) error
}

// visitor is the dispatch table entry resolved at registration time.
type visitor struct {
	routes   Routes
	fallback Handler
}

// Parser is the incremental frame tokenizer.
type Parser struct {
	buf      []byte
	cursor   int
	visitors []visitor
	subs     map[string][]Handler

	events int
	bytes  int64
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{subs: map[string][]Handler{}}
}

// Register adds a visitor. Visitors receive events in registration order,
// before any callback subscribed with On.
func (p *Parser) Register(v Visitor) {
	entry := visitor{}
	if routes := v.Routes(); len(routes) > 0 {
		entry.routes = make(Routes, len(routes))
		for field, h := range routes {
			entry.routes[field] = h
		}
	}
	if fb, ok := v.(Fallback); ok {
		entry.fallback = fb.OnChunk
	}
	p.visitors = append(p.visitors, entry)
}

// On subscribes h to events whose Field equals field.
func (p *Parser) On(field string, h Handler) {
	p.subs[field] = append(p.subs[field], h)
}

// Write appends chunk to the buffer and dispatches every complete line it
// makes available. A trailing partial line stays buffered until more bytes
// arrive or Flush is called.
func (p *Parser) Write(chunk []byte) (int, error) {
	p.buf = append(p.buf, chunk...)
	p.bytes += int64(len(chunk))
	err := p.scan()
	p.compact()
	return len(chunk), err
}

// WriteString is Write for string chunks.
func (p *Parser) WriteString(chunk string) (int, error) {
	return p.Write([]byte(chunk))
}

// Flush dispatches a non-empty remainder that was never newline-terminated.
// Call it once the transport reports the end of the stream.
func (p *Parser) Flush() error {
	defer p.compact()
	if err := p.scan(); err != nil {
		return err
	}
	if p.cursor >= len(p.buf) {
		return nil
	}
	line := p.buf[p.cursor:]
	p.cursor = len(p.buf)
	return p.dispatch(parseLine(line))
}

// ReadFrom feeds the parser from r until EOF, then flushes. Read errors other
// than io.EOF are returned as-is, after the bytes read so far were dispatched.
func (p *Parser) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, readSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if _, werr := p.Write(buf[:n]); werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, p.Flush()
		}
		if err != nil {
			return total, err
		}
	}
}

// Body returns a copy of the buffered, not yet dispatched bytes.
func (p *Parser) Body() []byte {
	return bytes.Clone(p.buf)
}

// Free drops buffered state. Dispatched events are unaffected.
func (p *Parser) Free() {
	p.buf = nil
	p.cursor = 0
}

// Events returns the number of events dispatched so far.
func (p *Parser) Events() int { return p.events }

// Bytes returns the number of bytes fed so far.
func (p *Parser) Bytes() int64 { return p.bytes }

// scan dispatches every complete line from the cursor on.
func (p *Parser) scan() error {
	for {
		nl := bytes.IndexByte(p.buf[p.cursor:], '\n')
		if nl < 0 {
			return nil
		}
		end := p.cursor + nl + 1
		line := p.buf[p.cursor:end]
		p.cursor = end
		if err := p.dispatch(parseLine(line)); err != nil {
			return err
		}
	}
}

// compact discards consumed bytes. Only called between passes.
func (p *Parser) compact() {
	if p.cursor == 0 {
		return
	}
	rest := p.buf[p.cursor:]
	if cap(p.buf) > shrinkAbove && len(rest) < cap(p.buf)/4 {
		p.buf = bytes.Clone(rest)
	} else {
		p.buf = append(p.buf[:0], rest...)
	}
	p.cursor = 0
}

func (p *Parser) dispatch(ev Event) error {
	p.events++
	for _, v := range p.visitors {
		h, ok := v.routes[ev.Field]
		if !ok {
			h = v.fallback
		}
		if h == nil {
			continue
		}
		if err := h(ev); err != nil {
			return err
		}
	}
	for _, h := range p.subs[ev.Field] {
		if err := h(ev); err != nil {
			return err
		}
	}
	return nil
}
