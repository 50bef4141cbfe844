package stat

import "fmt"

// FatalError reports a configuration-integrity violation: the configuration
// references an implementation name no module registered. A half-built
// pipeline must never run, so Init stops on the first one; the host decides
// how to report it and must not continue.
type FatalError struct {
	// Role is "classifier", "tokenizer", "backend", or "cache".
	Role string
	// Name is the unresolved implementation name.
	Name string
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("no %s registered under name %q", e.Role, e.Name)
}
