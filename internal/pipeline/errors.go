package pipeline

import "fmt"

// ExhaustedError reports that every query ran its whole provider chain
// without producing a result. When even one query succeeds the build
// proceeds with whatever was found, so exhaustion always means zero results.
type ExhaustedError struct {
	Queries   int
	Failovers int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d queries exhausted their provider chain (%d failovers)", e.Queries, e.Failovers)
}
