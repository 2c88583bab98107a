package pipeline

import "io"

// countingWriter wraps an io.Writer and accumulates the number of bytes
// successfully written through it.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

// countingReader wraps an io.Reader and accumulates the number of bytes
// successfully read through it.
type countingReader struct {
	r     io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count += int64(n)
	return n, err
}
