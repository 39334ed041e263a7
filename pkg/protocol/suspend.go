package protocol

import (
	"errors"
	"fmt"
)

// SuspendError is returned by an approval-required sizing node to park its
// branch. The scheduler persists the execution context with the decision id
// and the remaining node list so the run can resume later, including after a
// process restart.
type SuspendError struct {
	NodeID     string
	DecisionID string
}

func (e *SuspendError) Error() string {
	return fmt.Sprintf("node %s suspended awaiting approval of decision %s", e.NodeID, e.DecisionID)
}

// AsSuspend unwraps a node error into a SuspendError, if it is one.
func AsSuspend(err error) (*SuspendError, bool) {
	var s *SuspendError
	if errors.As(err, &s) {
		return s, true
	}

	return nil, false
}
