package engine

// InvalidSpecificationError is returned by BuildRules when metadata
// validation reports one or more errors. It carries the full accumulated
// status so every problem is visible at once.
type InvalidSpecificationError struct {
	Status *ValidationStatus
}

func (e *InvalidSpecificationError) Error() string {
	return "invalid checks specification:\n" + e.Status.String()
}
