package workflow

import (
	"fmt"

	"github.com/gulfstream-dynamics/crm_backend/models"
)

// UnknownStageError is fatal to the operation in progress: a stage value
// outside the catalog must never silently default to position 0.
type UnknownStageError struct {
	Stage string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown order stage %q", e.Stage)
}

// PreconditionError rejects a transition whose guard is unmet. The message
// names the guard so the caller can surface an actionable reason.
type PreconditionError struct {
	Event  EventType
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot apply %s: %s", e.Event, e.Reason)
}

// TerminalStateError rejects any transition on a COMPLETED or CANCELLED
// order.
type TerminalStateError struct {
	OrderId int
	Status  models.OrderStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("order %d is %s and accepts no further transitions", e.OrderId, e.Status)
}

// ConcurrentModificationError means the optimistic version check failed at
// commit time. The caller should refetch and retry or surface a conflict;
// this package never retries on its own.
type ConcurrentModificationError struct {
	OrderId         int
	ExpectedVersion int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("order %d was changed concurrently (expected version %d)", e.OrderId, e.ExpectedVersion)
}

// DataConsistencyWarning flags malformed persisted data found while building
// a snapshot. Non-fatal: reads degrade gracefully, the warning is logged for
// operator follow-up.
type DataConsistencyWarning struct {
	Code   string
	Detail string
}

func (w DataConsistencyWarning) String() string {
	return w.Code + ": " + w.Detail
}
