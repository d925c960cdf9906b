package driven

import "context"

// CommandRunner runs an external program and returns its standard output.
// OCR shells out to pdftoppm and tesseract through this port.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Available reports whether the program can be found.
	Available(name string) bool
}
