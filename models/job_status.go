package models

import "strings"

// JobStatus is the lifecycle stage of a repair job
type JobStatus string

const (
	StatusItemReceived   JobStatus = "ITEM_RECEIVED"
	StatusInQueue        JobStatus = "IN_QUEUE"
	StatusUnderRepair    JobStatus = "UNDER_REPAIR"
	StatusAwaitingParts  JobStatus = "AWAITING_PARTS"
	StatusReadyForPickup JobStatus = "READY_FOR_PICKUP"
	StatusPickedUp       JobStatus = "PICKED_UP"
	StatusCancelled      JobStatus = "CANCELLED"
)

// JobStatuses lists every status in lifecycle order
var JobStatuses = []JobStatus{
	StatusItemReceived,
	StatusInQueue,
	StatusUnderRepair,
	StatusAwaitingParts,
	StatusReadyForPickup,
	StatusPickedUp,
	StatusCancelled,
}

// transitions is the legal move table. Staying in the same status is always allowed.
var transitions = map[JobStatus][]JobStatus{
	StatusItemReceived:   {StatusInQueue, StatusUnderRepair, StatusCancelled},
	StatusInQueue:        {StatusUnderRepair, StatusAwaitingParts, StatusCancelled},
	StatusUnderRepair:    {StatusAwaitingParts, StatusReadyForPickup, StatusCancelled},
	StatusAwaitingParts:  {StatusUnderRepair, StatusCancelled},
	StatusReadyForPickup: {StatusPickedUp, StatusUnderRepair},
	StatusPickedUp:       {},
	StatusCancelled:      {},
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal returns true for statuses that end the normal flow
func (s JobStatus) IsTerminal() bool {
	return s == StatusPickedUp || s == StatusCancelled
}

// Label renders the status for humans, e.g. "READY FOR PICKUP"
func (s JobStatus) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// CanTransition reports whether a job may move from one status to another
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return from.Valid()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatusQuery maps a URL-friendly value like "ready_for_pickup" to a status.
// Enum spellings ("READY_FOR_PICKUP") are accepted too.
func ParseStatusQuery(value string) (JobStatus, bool) {
	s := JobStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}
