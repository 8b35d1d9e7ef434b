package commands

import (
	"io"
	"os"
)

// openFeedInput opens path as the transaction feed, or falls back to
// stdin if path is empty. The returned closer is always safe to call,
// even for stdin.
func openFeedInput(path string) (io.Reader, func() error, error) {
	if path == "" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
