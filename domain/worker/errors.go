package worker

import "errors"

// ErrInstanceAlreadyAssigned is returned by AssignInstance when instance_id
// is already set to a different value; instance_id is immutable once
// assigned.
var ErrInstanceAlreadyAssigned = errors.New("worker: instance_id already assigned to a different value")
