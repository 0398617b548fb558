package escalation

import "errors"

// ErrNotFound indicates a missing notification record.
var ErrNotFound = errors.New("escalation: not found")

// ErrDuplicateNotification indicates a (tracking, rule, repeat) triple was
// already recorded, typically by a concurrent evaluation of the same ticket.
var ErrDuplicateNotification = errors.New("escalation: duplicate notification")

// ErrAlreadySettled indicates a delivery outcome was already recorded.
var ErrAlreadySettled = errors.New("escalation: notification already settled")
