package compute

import (
	"errors"
	"fmt"
)

var (
	ErrPartition     = errors.New("non-conforming partition")
	ErrGroupTooLarge = errors.New("group size exceeds device limit")
	ErrLocalMemory   = errors.New("local memory exceeds device capacity")
	ErrLaneFailed    = errors.New("lane failed")
	ErrDependency    = errors.New("dependency failed")
)

// errBarrierBroken unwinds lanes blocked on a barrier after another lane of
// the same group failed.
var errBarrierBroken = errors.New("barrier broken")

func laneError(group, lane int, rec any) error {
	if recErr, ok := rec.(error); ok {
		return fmt.Errorf("%w: group %d lane %d: %w", ErrLaneFailed, group, lane, recErr)
	}
	return fmt.Errorf("%w: group %d lane %d: %v", ErrLaneFailed, group, lane, rec)
}
