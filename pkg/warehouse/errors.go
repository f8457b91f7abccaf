package warehouse

import "fmt"

// ReferentialError reports a fact record referencing a dimension code that
// does not exist. The dimension builder runs over the same input as the
// loader, so this indicates a pipeline-ordering bug, not bad input data.
type ReferentialError struct {
	Dimension string
	Code      string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("fact references unknown %s dimension code %q", e.Dimension, e.Code)
}

// GrainConflictError reports a second fact row arriving on an already
// occupied grain tuple while the load policy is reject.
type GrainConflictError struct {
	Table string
	Key   string
}

func (e *GrainConflictError) Error() string {
	return fmt.Sprintf("duplicate grain tuple %s in %s", e.Key, e.Table)
}
