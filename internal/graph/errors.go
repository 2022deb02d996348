package graph

// cycleError signals an edge registration that would close a dependency
// cycle. It is a configuration error: fatal when raised during startup load.
type cycleError struct{ dependent, dependsOn string }

func (e cycleError) Error() string {
	return "cycle detected: " + e.dependent + " -> " + e.dependsOn
}

// ErrCycle constructs a cycleError.
func ErrCycle(dependent, dependsOn string) error {
	return cycleError{dependent: dependent, dependsOn: dependsOn}
}

// IsCycle reports whether err indicates a rejected cyclic edge.
func IsCycle(err error) bool {
	_, ok := err.(cycleError)
	return ok
}
