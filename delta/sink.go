package delta

// SinkFunc adapts a function to the sink interfaces expected by WithSink.
type SinkFunc func(text string) error

// Write calls f with p as a string.
func (f SinkFunc) Write(p []byte) (int, error) {
	return f.WriteString(string(p))
}

// WriteString calls f with s.
func (f SinkFunc) WriteString(s string) (int, error) {
	if err := f(s); err != nil {
		return 0, err
	}
	return len(s), nil
}
