package generate

import "fmt"

// TerminalError reports an image that could not be produced within the
// configured number of regeneration attempts. It stops the run.
type TerminalError struct {
	Image    string
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("failed to create %s after %d attempts; the dots are probably too big or too many: %v",
		e.Image, e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Is matches any *TerminalError.
func (e *TerminalError) Is(target error) bool {
	_, ok := target.(*TerminalError)
	return ok
}

// ErrTerminal matches every TerminalError via errors.Is.
var ErrTerminal = &TerminalError{}
