package registry

// duplicateModelError signals an id collision at registration time.
// It is a configuration error: fatal when raised during startup load.
type duplicateModelError struct{ id string }

func (e duplicateModelError) Error() string { return "duplicate model id: " + e.id }

// ErrDuplicateModel constructs a duplicateModelError.
func ErrDuplicateModel(id string) error { return duplicateModelError{id: id} }

// IsDuplicateModel reports whether err indicates a model id collision.
func IsDuplicateModel(err error) bool {
	_, ok := err.(duplicateModelError)
	return ok
}

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound constructs a modelNotFoundError.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}
