package chain

import (
	"sync/atomic"

	"github.com/ravelstream/opchain/record"
)

// sharedStatus is the mutable ACTIVE/IDLE flag every chaining,
// broadcasting and directed output in a chain reads from, and the one
// the controller's ToggleStreamStatus writes to (spec.md §4.7). It is
// built once, before recursion starts, and threaded into every sink so
// none of them need a back-reference to the controller itself.
type sharedStatus struct {
	active int32
}

func newSharedStatus() *sharedStatus {
	return &sharedStatus{active: 1}
}

func (s *sharedStatus) StreamStatus() record.StreamStatus {
	if atomic.LoadInt32(&s.active) == 1 {
		return record.Active
	}
	return record.Idle
}

func (s *sharedStatus) set(status record.StreamStatus) bool {
	var next int32
	if status.IsActive() {
		next = 1
	}
	prev := atomic.SwapInt32(&s.active, next)
	return prev != next
}
