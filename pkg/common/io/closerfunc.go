package io

// CloserFunc adapts a release function to io.Closer, e.g. for MultiCloser.
type CloserFunc func() error

func (f CloserFunc) Close() error {
	return f()
}
